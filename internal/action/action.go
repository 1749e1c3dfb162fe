package action

import (
	"context"

	"github.com/liiist/liiist/internal/model"
	"github.com/liiist/liiist/internal/schema"
)

// Session is the caller-scoped session slot an action may read or write.
type Session interface {
	Get(ctx context.Context) (*model.Session, error)
	Set(ctx context.Context, user *model.User, tokens model.TokenPair) error
	Clear(ctx context.Context) error
}

// Viewer is the in-memory view of the signed-in user for the current request.
type Viewer interface {
	SetUser(user *model.User)
	Clear()
}

// Request carries the raw form and the caller's session into an action.
type Request struct {
	Form    schema.Input
	Session Session
	Viewer  Viewer
}

// Action is a callable built by Validated or ValidatedWithUser.
type Action func(ctx context.Context, req *Request) Result

// Func is business logic that runs on validated input.
type Func[T any] func(ctx context.Context, in T, req *Request) Result

// UserFunc is business logic that runs on validated input for a signed-in
// user. It may assume user is non-nil.
type UserFunc[T any] func(ctx context.Context, in T, req *Request, user *model.User) Result

// Validated returns an Action that validates req.Form against s and only
// then calls fn. On validation failure fn is never invoked.
func Validated[T any](s *schema.Schema[T], fn Func[T]) Action {
	return func(ctx context.Context, req *Request) Result {
		in, errs := s.Validate(req.Form)
		if errs != nil {
			return Invalid(errs)
		}
		return fn(ctx, in, req)
	}
}

// ValidatedWithUser returns an Action that first resolves the signed-in
// user from req.Session. Without a session it returns Unauthorized and
// neither validates nor calls fn.
func ValidatedWithUser[T any](s *schema.Schema[T], fn UserFunc[T]) Action {
	return func(ctx context.Context, req *Request) Result {
		sess, err := req.Session.Get(ctx)
		if err != nil {
			return Fault(err)
		}
		if sess == nil || sess.User == nil {
			return Unauthorized()
		}

		user := sess.User
		return Validated(s, func(ctx context.Context, in T, req *Request) Result {
			return fn(ctx, in, req, user)
		})(ctx, req)
	}
}
