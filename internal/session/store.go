// Package session keeps the signed-in user's token pair in a server-side
// record referenced by a signed cookie.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/liiist/liiist/internal/model"
)

// DefaultCookieName is used when Options.CookieName is empty.
const DefaultCookieName = "liiist_session"

var (
	// ErrMissingSecret is returned by NewStore without a signing secret.
	ErrMissingSecret = errors.New("session signing secret is required")
	// ErrTokensExpired is returned by Set for a pair whose refresh token
	// has already expired.
	ErrTokensExpired = errors.New("token pair already expired")
)

// Backend stores encoded session records under opaque ids.
// LoadSession returns nil, nil for a missing or expired record.
type Backend interface {
	SaveSession(ctx context.Context, id string, data []byte, ttl time.Duration) error
	LoadSession(ctx context.Context, id string) ([]byte, error)
	DeleteSession(ctx context.Context, id string) error
}

// Users resolves the user a session belongs to.
type Users interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Refresher exchanges a refresh token for a rotated pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
}

// Options configure a Store.
type Options struct {
	CookieName string
	Secret     []byte
	// Secure marks the cookie Secure. Disable only for plain-HTTP development.
	Secure bool
	// Refresher, when set, rotates an expired access token on Get.
	Refresher Refresher
}

// record is the server-side session payload.
type record struct {
	UserID string          `json:"user_id"`
	Tokens model.TokenPair `json:"tokens"`
}

// Store hands out per-request session slots.
type Store struct {
	backend Backend
	users   Users
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a Store.
func NewStore(backend Backend, users Users, opts Options, logger *slog.Logger) (*Store, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		users:   users,
		opts:    opts,
		logger:  logger.With("component", "session"),
		now:     time.Now,
	}, nil
}

// Slot returns the session slot of the caller behind r. Cookies set by the
// slot are written to w.
func (s *Store) Slot(w http.ResponseWriter, r *http.Request) *Slot {
	return &Slot{store: s, w: w, r: r}
}

// Middleware attaches a Slot to every request context.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := s.Slot(w, r)
		next.ServeHTTP(w, r.WithContext(WithSlot(r.Context(), slot)))
	})
}

func (s *Store) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type slotKey struct{}

// WithSlot stores slot in ctx.
func WithSlot(ctx context.Context, slot *Slot) context.Context {
	return context.WithValue(ctx, slotKey{}, slot)
}

// FromContext returns the slot attached by Middleware.
func FromContext(ctx context.Context) (*Slot, bool) {
	slot, ok := ctx.Value(slotKey{}).(*Slot)
	return slot, ok
}
