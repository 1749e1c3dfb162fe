// Package action composes form validation with business logic.
//
// Every action returns a Result describing what happened. Validation and
// business failures are data, not errors, so the transport layer can render
// them inline. A redirect is also just a Result; the caller performs it.
package action

import (
	"github.com/liiist/liiist/internal/schema"
)

// Kind tags the outcome held by a Result.
type Kind int

// Result kinds.
const (
	KindSuccess Kind = iota
	KindInvalid
	KindFailure
	KindUnauthorized
	KindRedirect
	KindFault
)

// String returns a short name for logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindInvalid:
		return "invalid"
	case KindFailure:
		return "failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindRedirect:
		return "redirect"
	case KindFault:
		return "fault"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of an action. Only the fields that belong to
// Kind are populated.
type Result struct {
	Kind       Kind
	Fields     schema.FieldErrors // KindInvalid
	Message    string             // KindFailure, optional for KindSuccess
	Payload    any                // KindSuccess
	RedirectTo string             // KindRedirect
	Err        error              // KindFault
}

// OK returns a success carrying payload.
func OK(payload any) Result {
	return Result{Kind: KindSuccess, Payload: payload}
}

// Done returns a success carrying a user-facing message.
func Done(msg string) Result {
	return Result{Kind: KindSuccess, Message: msg}
}

// Invalid returns a validation failure.
func Invalid(fields schema.FieldErrors) Result {
	return Result{Kind: KindInvalid, Fields: fields}
}

// Fail returns a business failure with a user-facing message.
func Fail(msg string) Result {
	return Result{Kind: KindFailure, Message: msg}
}

// Unauthorized returns an authorization failure.
func Unauthorized() Result {
	return Result{Kind: KindUnauthorized}
}

// Redirect returns an instruction to send the caller to target.
func Redirect(target string) Result {
	return Result{Kind: KindRedirect, RedirectTo: target}
}

// Fault wraps an infrastructure error the caller cannot correct.
func Fault(err error) Result {
	return Result{Kind: KindFault, Err: err}
}

// Failed reports whether the result is any kind of failure.
func (r Result) Failed() bool {
	switch r.Kind {
	case KindSuccess, KindRedirect:
		return false
	default:
		return true
	}
}
