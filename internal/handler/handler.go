// Package handler adapts HTTP requests to actions and renders their results.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/liiist/liiist/internal/action"
	"github.com/liiist/liiist/internal/identity"
	"github.com/liiist/liiist/internal/metrics"
	"github.com/liiist/liiist/internal/middleware"
	"github.com/liiist/liiist/internal/schema"
	"github.com/liiist/liiist/internal/session"
)

// Response messages not owned by an action.
const (
	MsgInternal       = "Internal server error"
	MsgBadRequestBody = "Invalid request body"
)

// Handler runs actions for HTTP requests.
type Handler struct {
	logger     *slog.Logger
	metrics    metrics.Recorder
	signInPath string
}

// New creates a Handler. Unauthorized results redirect to signInPath.
func New(logger *slog.Logger, recorder metrics.Recorder, signInPath string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if signInPath == "" {
		signInPath = "/sign-in"
	}
	return &Handler{
		logger:     logger.With("component", "handler"),
		metrics:    recorder,
		signInPath: signInPath,
	}
}

// Run returns an http.HandlerFunc that feeds the request form, merged with
// chi route parameters, into act and renders the result. name labels logs
// and metrics.
//
// The route must sit behind session.Store.Middleware; identity.Provider is
// optional.
func (h *Handler) Run(name string, act action.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, ok := session.FromContext(r.Context())
		if !ok {
			h.fault(w, r, name, errors.New("session middleware not installed"))
			return
		}

		form, err := readForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, MsgBadRequestBody)
			return
		}

		req := &action.Request{Form: form, Session: slot}
		if holder, ok := identity.FromContext(r.Context()); ok {
			req.Viewer = holder
		}

		start := time.Now()
		res := act(r.Context(), req)
		h.metrics.ObserveActionDuration(name, time.Since(start))
		h.metrics.IncActionResult(name, res.Kind.String())

		h.writeResult(w, r, name, res)
	}
}

// writeResult maps every result kind to its status and body in one place.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, name string, res action.Result) {
	switch res.Kind {
	case action.KindSuccess:
		if res.Message != "" {
			writeJSON(w, http.StatusOK, map[string]string{"success": res.Message})
			return
		}
		writeJSON(w, http.StatusOK, res.Payload)
	case action.KindInvalid:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]schema.FieldErrors{"errors": res.Fields})
	case action.KindFailure:
		writeError(w, http.StatusBadRequest, res.Message)
	case action.KindUnauthorized:
		target := h.signInPath + "?" + url.Values{"redirect": {r.URL.Path}}.Encode()
		http.Redirect(w, r, target, http.StatusSeeOther)
	case action.KindRedirect:
		http.Redirect(w, r, res.RedirectTo, http.StatusSeeOther)
	case action.KindFault:
		h.fault(w, r, name, res.Err)
	default:
		h.fault(w, r, name, errors.New("unknown result kind "+strconv.Itoa(int(res.Kind))))
	}
}

func (h *Handler) fault(w http.ResponseWriter, r *http.Request, name string, err error) {
	middleware.LoggerFor(r.Context(), h.logger).Error("action failed",
		slog.String("action", name),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, MsgInternal)
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// readForm collects url-encoded, multipart or JSON object bodies plus the
// query string and route parameters. Route parameters win.
func readForm(r *http.Request) (schema.Input, error) {
	form := schema.Input{}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		for k, v := range r.URL.Query() {
			form[k] = v
		}
		if err := decodeJSONForm(r.Body, form); err != nil {
			return nil, err
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
		for k, v := range r.Form {
			form[k] = v
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		for k, v := range r.Form {
			form[k] = v
		}
	}

	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if key == "*" {
				continue
			}
			form.Set(key, rctx.URLParams.Values[i])
		}
	}
	return form, nil
}

// decodeJSONForm flattens a JSON object into form values. Strings are kept
// as-is; any other value keeps its JSON text so schema.JSON can decode it.
func decodeJSONForm(body io.Reader, form schema.Input) error {
	var obj map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&obj); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	for k, raw := range obj {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			form.Set(k, s)
			continue
		}
		if string(raw) == "null" {
			continue
		}
		form.Set(k, string(raw))
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
