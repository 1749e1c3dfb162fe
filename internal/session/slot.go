package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/liiist/liiist/internal/credential"
	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/repository"
)

// Slot is one caller's session for the duration of a request.
// It is safe for concurrent use; writes are last-writer-wins.
type Slot struct {
	store *Store
	w     http.ResponseWriter
	r     *http.Request

	mu       sync.Mutex
	resolved bool
	id       string
}

// Get returns the caller's session, or nil when there is none. A missing,
// tampered, expired or unreadable session is reported as nil, nil; only
// backend failures are errors. Get never writes cookies.
func (s *Slot) Get(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.currentID()
	if id == "" {
		return nil, nil
	}

	rec, ok, err := s.load(ctx, id)
	if err != nil || !ok {
		return nil, err
	}

	if rec.Tokens.AccessExpired(s.store.now()) && s.store.opts.Refresher != nil {
		tried := rec.Tokens.RefreshToken
		rotated, err := s.store.opts.Refresher.Refresh(ctx, tried)
		if err != nil {
			if !errors.Is(err, credential.ErrRefreshTokenInvalid) {
				return nil, fmt.Errorf("refresh session: %w", err)
			}
			// A parallel request may have rotated the pair first.
			current, ok, err := s.load(ctx, id)
			if err != nil {
				return nil, err
			}
			if ok && current.Tokens.RefreshToken != tried {
				return s.resolve(ctx, id, current)
			}
			if ok {
				s.drop(ctx, id)
			}
			return nil, nil
		}
		if err := s.save(ctx, id, rotated.User.ID, rotated.Tokens); err != nil {
			return nil, err
		}
		return rotated, nil
	}

	return s.resolve(ctx, id, rec)
}

// load reads and decodes the record under id. Unreadable or fully expired
// records are dropped and reported as absent.
func (s *Slot) load(ctx context.Context, id string) (record, bool, error) {
	data, err := s.store.backend.LoadSession(ctx, id)
	if err != nil {
		return record{}, false, fmt.Errorf("load session: %w", err)
	}
	if data == nil {
		return record{}, false, nil
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.UserID == "" {
		s.store.logger.Warn("discarding unreadable session", slog.String("session_id", id))
		s.drop(ctx, id)
		return record{}, false, nil
	}
	if rec.Tokens.RefreshExpired(s.store.now()) {
		s.drop(ctx, id)
		return record{}, false, nil
	}
	return rec, true, nil
}

// resolve attaches the record's user.
func (s *Slot) resolve(ctx context.Context, id string, rec record) (*model.Session, error) {
	user, err := s.store.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.drop(ctx, id)
			return nil, nil
		}
		return nil, fmt.Errorf("resolve session user: %w", err)
	}
	return &model.Session{User: user, Tokens: rec.Tokens}, nil
}

// Set stores a new session for user, replacing any previous one.
func (s *Slot) Set(ctx context.Context, user *model.User, tokens model.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ttl := tokens.RefreshExpiresAt.Sub(s.store.now())
	if ttl <= 0 {
		return ErrTokensExpired
	}

	if old := s.currentID(); old != "" {
		s.drop(ctx, old)
	}

	id := ulid.Make().String()
	if err := s.save(ctx, id, user.ID, tokens); err != nil {
		return err
	}

	maxAge := int(math.Ceil(ttl.Seconds()))
	http.SetCookie(s.w, s.store.cookie(signID(s.store.opts.Secret, id), maxAge))

	s.id = id
	s.resolved = true
	return nil
}

// Clear removes the session record and expires the cookie. Clearing an
// empty slot does nothing.
func (s *Slot) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.currentID()
	_, cookieErr := s.r.Cookie(s.store.opts.CookieName)
	if id == "" && cookieErr != nil {
		return nil
	}

	if id != "" {
		if err := s.store.backend.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	http.SetCookie(s.w, s.store.cookie("", -1))
	s.id = ""
	s.resolved = true
	return nil
}

// currentID returns the id this slot points at. Callers hold s.mu.
func (s *Slot) currentID() string {
	if s.resolved {
		return s.id
	}
	s.resolved = true
	c, err := s.r.Cookie(s.store.opts.CookieName)
	if err != nil {
		return ""
	}
	s.id = verifyCookie(s.store.opts.Secret, c.Value)
	return s.id
}

func (s *Slot) save(ctx context.Context, id, userID string, tokens model.TokenPair) error {
	data, err := json.Marshal(record{UserID: userID, Tokens: tokens})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := tokens.RefreshExpiresAt.Sub(s.store.now())
	if err := s.store.backend.SaveSession(ctx, id, data, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// drop deletes a record that can no longer be used. Failures are logged:
// the record expires on its own.
func (s *Slot) drop(ctx context.Context, id string) {
	if err := s.store.backend.DeleteSession(ctx, id); err != nil {
		s.store.logger.Warn("failed to delete session",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
	}
}
