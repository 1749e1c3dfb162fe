// Package service provides the business actions behind each form.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/liiist/liiist/internal/action"
	"github.com/liiist/liiist/internal/credential"
	"github.com/liiist/liiist/internal/model"
)

// User-facing messages.
const (
	MsgInvalidCredentials = "Invalid email or password. Please try again."
	MsgSignUpFailed       = "Failed to create user. Please try again."
	MsgPasswordIncorrect  = "Current password is incorrect"
	MsgPasswordUnchanged  = "New password must be different from current password"
	MsgPasswordMismatch   = "Passwords do not match"
	MsgPasswordUpdated    = "Password updated successfully"
)

// SignInPath is where signed-out callers are sent.
const SignInPath = "/sign-in"

// Credentials is the credential service as seen by account actions.
type Credentials interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Register(ctx context.Context, p credential.RegisterParams) (*model.User, error)
	UpdatePassword(ctx context.Context, user *model.User, current, next, confirm string) error
	Revoke(ctx context.Context, refreshToken string) error
}

// AccountService holds the sign-in, sign-up, sign-out and password actions.
type AccountService struct {
	creds   Credentials
	landing string
	logger  *slog.Logger

	signIn         action.Action
	signUp         action.Action
	signOut        action.Action
	updatePassword action.Action
}

// NewAccountService creates an AccountService. landing is the default
// redirect after sign-in and sign-up.
func NewAccountService(creds Credentials, landing string, logger *slog.Logger) *AccountService {
	if landing == "" {
		landing = "/home"
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AccountService{
		creds:   creds,
		landing: landing,
		logger:  logger.With("component", "account"),
	}
	s.signIn = action.Validated(SignInSchema, s.doSignIn)
	s.signUp = action.Validated(SignUpSchema, s.doSignUp)
	s.signOut = action.Validated(Empty, s.doSignOut)
	s.updatePassword = action.ValidatedWithUser(PasswordSchema, s.doUpdatePassword)
	return s
}

// SignIn authenticates the caller and redirects to the requested local
// path or the landing page. A failed attempt writes no session.
func (s *AccountService) SignIn(ctx context.Context, req *action.Request) action.Result {
	return s.signIn(ctx, req)
}

// SignUp registers an account, signs it in and redirects to the landing page.
func (s *AccountService) SignUp(ctx context.Context, req *action.Request) action.Result {
	return s.signUp(ctx, req)
}

// SignOut revokes the refresh token, clears the session and redirects to
// the sign-in page. Without a session it only redirects.
func (s *AccountService) SignOut(ctx context.Context, req *action.Request) action.Result {
	return s.signOut(ctx, req)
}

// UpdatePassword changes the signed-in user's password. Tokens are not
// rotated.
func (s *AccountService) UpdatePassword(ctx context.Context, req *action.Request) action.Result {
	return s.updatePassword(ctx, req)
}

func (s *AccountService) doSignIn(ctx context.Context, in SignInForm, req *action.Request) action.Result {
	sess, err := s.creds.Login(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidCredentials) {
			return action.Fail(MsgInvalidCredentials)
		}
		return action.Fault(err)
	}

	if err := s.establish(ctx, req, sess); err != nil {
		return action.Fault(err)
	}

	target := in.Redirect
	if target == "" {
		target = s.landing
	}
	return action.Redirect(target)
}

func (s *AccountService) doSignUp(ctx context.Context, in SignUpForm, req *action.Request) action.Result {
	_, err := s.creds.Register(ctx, credential.RegisterParams{
		Email:       in.Email,
		Password:    in.Password,
		Name:        in.Name,
		DateOfBirth: in.DateOfBirth,
		Retailers:   in.Supermarkets,
	})
	switch {
	case err == nil:
	case errors.Is(err, credential.ErrEmailTaken),
		errors.Is(err, credential.ErrInvalidRetailers),
		errors.Is(err, credential.ErrInvalidDateOfBirth):
		s.logger.Info("sign-up rejected", "reason", err.Error())
		return action.Fail(MsgSignUpFailed)
	default:
		return action.Fault(err)
	}

	sess, err := s.creds.Login(ctx, in.Email, in.Password)
	if err != nil {
		return action.Fault(err)
	}
	if err := s.establish(ctx, req, sess); err != nil {
		return action.Fault(err)
	}
	return action.Redirect(s.landing)
}

func (s *AccountService) doSignOut(ctx context.Context, _ struct{}, req *action.Request) action.Result {
	sess, err := req.Session.Get(ctx)
	if err != nil {
		return action.Fault(err)
	}

	if sess != nil {
		if err := s.creds.Revoke(ctx, sess.Tokens.RefreshToken); err != nil {
			s.logger.Warn("failed to revoke refresh token", "user_id", sess.User.ID, "error", err)
		}
	}
	if err := req.Session.Clear(ctx); err != nil {
		return action.Fault(err)
	}
	if req.Viewer != nil {
		req.Viewer.Clear()
	}
	return action.Redirect(SignInPath)
}

func (s *AccountService) doUpdatePassword(ctx context.Context, in PasswordForm, _ *action.Request, user *model.User) action.Result {
	err := s.creds.UpdatePassword(ctx, user, in.CurrentPassword, in.NewPassword, in.ConfirmPassword)
	switch {
	case err == nil:
		return action.Done(MsgPasswordUpdated)
	case errors.Is(err, credential.ErrCurrentPasswordIncorrect):
		return action.Fail(MsgPasswordIncorrect)
	case errors.Is(err, credential.ErrPasswordUnchanged):
		return action.Fail(MsgPasswordUnchanged)
	case errors.Is(err, credential.ErrPasswordMismatch):
		return action.Fail(MsgPasswordMismatch)
	default:
		return action.Fault(err)
	}
}

// establish writes the session slot first and only then the request view.
// A session it replaces has its refresh token revoked.
func (s *AccountService) establish(ctx context.Context, req *action.Request, sess *model.Session) error {
	prev, err := req.Session.Get(ctx)
	if err != nil {
		s.logger.Warn("failed to read previous session", "error", err)
	}
	if err := req.Session.Set(ctx, sess.User, sess.Tokens); err != nil {
		return err
	}
	if prev != nil && prev.Tokens.RefreshToken != sess.Tokens.RefreshToken {
		if err := s.creds.Revoke(ctx, prev.Tokens.RefreshToken); err != nil {
			s.logger.Warn("failed to revoke replaced refresh token", "user_id", prev.User.ID, "error", err)
		}
	}
	if req.Viewer != nil {
		req.Viewer.SetUser(sess.User)
	}
	return nil
}
