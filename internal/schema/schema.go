// Package schema validates untrusted form input into typed values.
//
// A Schema pairs a decoder, which coerces raw url.Values into a typed
// struct, with declarative ozzo-validation field rules. Validation is
// deterministic and side-effect free, and it reports every offending field
// rather than stopping at the first one.
package schema

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Input is raw, untyped form input.
type Input = url.Values

// FieldErrors maps a form field name to a user-facing message.
type FieldErrors map[string]string

// Add records msg for field unless the field already has a message.
// The first failure for a field wins so coercion errors are not masked by
// rule errors on the zero value.
func (e FieldErrors) Add(field, msg string) {
	if _, exists := e[field]; exists {
		return
	}
	e[field] = msg
}

// Fields returns the offending field names in sorted order.
func (e FieldErrors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Error implements error so field errors can be logged.
func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e.Fields() {
		parts = append(parts, f+": "+e[f])
	}
	return strings.Join(parts, "; ")
}

// Decoder coerces raw input into T, recording coercion failures in errs.
type Decoder[T any] func(in Input, errs FieldErrors) T

// Rules returns the field rules for a decoded value.
// Field pointers must point into v.
type Rules[T any] func(v *T) []*validation.FieldRules

// Schema describes how to turn raw input into a valid T.
type Schema[T any] struct {
	decode Decoder[T]
	rules  Rules[T]
}

// New creates a Schema from a decoder and its field rules.
func New[T any](decode Decoder[T], rules Rules[T]) *Schema[T] {
	return &Schema[T]{decode: decode, rules: rules}
}

// Validate decodes and checks in. It returns the typed value and nil on
// success, or the zero value and every field error on failure.
//
// A rule set that does not match T (for example a field pointer outside the
// struct) is a wiring defect and panics.
func (s *Schema[T]) Validate(in Input) (T, FieldErrors) {
	var zero T
	if in == nil {
		in = Input{}
	}

	errs := FieldErrors{}
	v := s.decode(in, errs)

	if s.rules != nil {
		if err := validation.ValidateStruct(&v, s.rules(&v)...); err != nil {
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				panic(fmt.Errorf("schema: invalid rule set for %T: %w", v, err))
			}
			for field, ferr := range verrs {
				if ferr != nil {
					errs.Add(field, ferr.Error())
				}
			}
		}
	}

	if len(errs) > 0 {
		return zero, errs
	}
	return v, nil
}
