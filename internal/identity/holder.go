// Package identity exposes the signed-in user to the request pipeline.
package identity

import (
	"context"
	"sync"

	"github.com/liiist/liiist/internal/model"
)

// Holder carries the current user of one request. It is seeded once from
// the session store and updated explicitly on sign-in and sign-out.
type Holder struct {
	mu       sync.Mutex
	user     *model.User
	err      error
	explicit bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewHolder returns an unresolved Holder.
func NewHolder() *Holder {
	return &Holder{ready: make(chan struct{})}
}

// User returns the current user, or nil while unresolved or signed out.
func (h *Holder) User() *model.User {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user
}

// Await blocks until the holder is resolved or ctx is done.
func (h *Holder) Await(ctx context.Context) (*model.User, error) {
	select {
	case <-h.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.user, h.err
}

// SetUser replaces the current user. A seed still in flight will not
// overwrite it.
func (h *Holder) SetUser(u *model.User) {
	h.mu.Lock()
	h.user = u
	h.err = nil
	h.explicit = true
	h.mu.Unlock()
	h.markReady()
}

// Clear signs the holder out.
func (h *Holder) Clear() {
	h.SetUser(nil)
}

// seed records the result of the initial resolution unless an explicit
// update already happened.
func (h *Holder) seed(u *model.User, err error) {
	h.mu.Lock()
	if !h.explicit {
		h.user = u
		h.err = err
	}
	h.mu.Unlock()
	h.markReady()
}

func (h *Holder) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}
