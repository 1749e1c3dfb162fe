package handler

import (
	"net/http"

	"github.com/liiist/liiist/internal/identity"
	"github.com/liiist/liiist/internal/model"
)

// MeResponse is the rendering layer's view of the signed-in user.
type MeResponse struct {
	User *model.Profile `json:"user"`
}

// Me reports the current user, or {"user":null} when signed out.
// Mounting it without identity.Provider panics.
// GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := identity.MustFromContext(r.Context()).Await(r.Context())
	if err != nil {
		h.fault(w, r, "me", err)
		return
	}

	resp := MeResponse{}
	if user != nil {
		p := user.ToProfile()
		resp.User = &p
	}
	writeJSON(w, http.StatusOK, resp)
}
