package schema

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Equals returns a rule that fails with msg unless the value equals other.
func Equals(other, msg string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New(msg)
		}
		return nil
	}
}

// NonBlankItems returns a rule that fails with msg when any string in a
// slice is blank.
func NonBlankItems(msg string) validation.RuleFunc {
	return func(value interface{}) error {
		items, _ := value.([]string)
		for _, item := range items {
			if strings.TrimSpace(item) == "" {
				return errors.New(msg)
			}
		}
		return nil
	}
}
