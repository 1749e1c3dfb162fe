// Package credential verifies passwords and issues access/refresh token pairs.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/repository"
)

// Users is the user storage the service depends on.
type Users interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string, at time.Time) error
}

// RefreshTokens is the refresh token storage the service depends on.
type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldHash string, next *model.RefreshToken) error
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
}

// Config holds token settings.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Hash       HashParams
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	Email       string
	Password    string
	Name        string
	DateOfBirth string // YYYY-MM-DD
	Retailers   []string
}

// Service implements login, registration, password change and token refresh.
type Service struct {
	users     Users
	tokens    RefreshTokens
	hasher    *Hasher
	issuer    *tokenIssuer
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// NewService creates a Service. Zero TTLs fall back to 15 minutes for access
// tokens and 7 days for refresh tokens; zero hash params use DefaultHashParams.
func NewService(users Users, tokens RefreshTokens, cfg Config, logger *slog.Logger) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Hash == (HashParams{}) {
		cfg.Hash = DefaultHashParams
	}
	if logger == nil {
		logger = slog.Default()
	}

	hasher := NewHasher(cfg.Hash)

	// Unknown emails are verified against this hash so a failed login
	// costs the same whether or not the account exists.
	dummy, err := hasher.Hash(ulid.Make().String())
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Service{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		issuer:    &tokenIssuer{secret: cfg.Secret, issuer: cfg.Issuer},
		cfg:       cfg,
		logger:    logger.With("component", "credential"),
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// Login verifies email and password and issues a fresh token pair.
// An unknown email and a wrong password both return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}
		_, _ = s.hasher.Verify(password, s.dummyHash)
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, user)
}

// Register creates a user. It never signs the user in.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*model.User, error) {
	retailers, err := NormalizeRetailers(p.Retailers)
	if err != nil {
		return nil, err
	}

	dob, err := time.Parse(time.DateOnly, strings.TrimSpace(p.DateOfBirth))
	if err != nil || dob.After(s.now()) {
		return nil, ErrInvalidDateOfBirth
	}

	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        normalizeEmail(p.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(p.Name),
		DateOfBirth:  dob,
		Retailers:    retailers,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return user, nil
}

// UpdatePassword replaces the password of user. The current session's
// token pair is deliberately left untouched.
func (s *Service) UpdatePassword(ctx context.Context, user *model.User, current, next, confirm string) error {
	if current == "" {
		return ErrCurrentPasswordIncorrect
	}
	if next != confirm {
		return ErrPasswordMismatch
	}
	if next == current {
		return ErrPasswordUnchanged
	}

	stored, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("reload user: %w", err)
	}

	ok, err := s.hasher.Verify(current, stored.PasswordHash)
	if err != nil || !ok {
		return ErrCurrentPasswordIncorrect
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash, s.now()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password updated", slog.String("user_id", user.ID))
	return nil
}

// Refresh exchanges a valid refresh token for a new pair. The old refresh
// token is consumed in the same transaction that stores the new one.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		return nil, ErrRefreshTokenInvalid
	}

	oldHash := hashToken(refreshToken)
	stored, err := s.tokens.GetRefreshToken(ctx, oldHash)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if stored.IsExpired(s.now()) {
		if err := s.tokens.DeleteRefreshToken(ctx, oldHash); err != nil {
			s.logger.Warn("failed to delete expired refresh token", slog.String("error", err.Error()))
		}
		return nil, ErrRefreshTokenInvalid
	}

	user, err := s.users.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	pair, record, err := s.mint(user)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.RotateRefreshToken(ctx, oldHash, record); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Lost a race with a concurrent refresh of the same token.
			return nil, ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &model.Session{User: user, Tokens: pair}, nil
}

// Revoke deletes a refresh token. Unknown tokens are ignored.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	err := s.tokens.DeleteRefreshToken(ctx, hashToken(refreshToken))
	if err != nil && !errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// ParseAccessToken validates an access token and returns its claims.
func (s *Service) ParseAccessToken(token string) (*AccessClaims, error) {
	return s.issuer.parseAccess(token)
}

// issue mints and persists a fresh pair for user.
func (s *Service) issue(ctx context.Context, user *model.User) (*model.Session, error) {
	pair, record, err := s.mint(user)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.CreateRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &model.Session{User: user, Tokens: pair}, nil
}

// mint creates a new pair and the refresh token record to store for it.
func (s *Service) mint(user *model.User) (model.TokenPair, *model.RefreshToken, error) {
	now := s.now()
	accessExp := now.Add(s.cfg.AccessTTL)
	refreshExp := now.Add(s.cfg.RefreshTTL)

	access, err := s.issuer.signAccess(user.ID, user.Email, now, accessExp)
	if err != nil {
		return model.TokenPair{}, nil, err
	}
	refresh, err := newRefreshToken()
	if err != nil {
		return model.TokenPair{}, nil, err
	}

	pair := model.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
	record := &model.RefreshToken{
		TokenHash: hashToken(refresh),
		UserID:    user.ID,
		ExpiresAt: refreshExp,
		CreatedAt: now,
	}
	return pair, record, nil
}

// NormalizeRetailers trims, drops blanks and removes case-insensitive
// duplicates while keeping first-seen order. It fails when the result is
// outside [model.MinRetailers, model.MaxRetailers].
func NormalizeRetailers(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	if len(out) < model.MinRetailers || len(out) > model.MaxRetailers {
		return nil, ErrInvalidRetailers
	}
	return out, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
