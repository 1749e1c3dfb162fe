package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/session"
)

// ErrNoProvider means a handler asked for the holder on a route that is not
// wrapped by Provider. It is a wiring mistake, not a runtime condition.
var ErrNoProvider = errors.New("identity: Provider middleware not installed")

// Source resolves the user behind a request.
type Source func(r *http.Request) (*model.User, error)

// SessionSource resolves the user through the session slot attached by
// session.Store.Middleware.
func SessionSource(r *http.Request) (*model.User, error) {
	slot, ok := session.FromContext(r.Context())
	if !ok {
		return nil, nil
	}
	sess, err := slot.Get(r.Context())
	if err != nil || sess == nil {
		return nil, err
	}
	return sess.User, nil
}

// Provider installs a Holder per request and seeds it from src on a
// separate goroutine. The request does not complete before the seed does.
func Provider(src Source, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := NewHolder()
			seeded := make(chan struct{})

			go func() {
				defer close(seeded)
				u, err := src(r)
				if err != nil {
					logger.Warn("failed to resolve session user",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				h.seed(u, err)
			}()

			next.ServeHTTP(w, r.WithContext(WithHolder(r.Context(), h)))
			<-seeded
		})
	}
}

type holderKey struct{}

// WithHolder stores h in ctx.
func WithHolder(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// FromContext returns the request's holder.
func FromContext(ctx context.Context) (*Holder, bool) {
	h, ok := ctx.Value(holderKey{}).(*Holder)
	return h, ok
}

// MustFromContext returns the request's holder and panics with
// ErrNoProvider when Provider is not installed.
func MustFromContext(ctx context.Context) *Holder {
	h, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoProvider)
	}
	return h
}
