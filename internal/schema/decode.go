package schema

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// String returns the trimmed value of key.
func String(in Input, key string) string {
	return strings.TrimSpace(in.Get(key))
}

// Raw returns the value of key untouched. Use it for secrets, where
// surrounding whitespace is significant.
func Raw(in Input, key string) string {
	return in.Get(key)
}

// JSON decodes the JSON document held by key into T. An absent or empty
// value yields the zero T without error so Required rules can report it.
func JSON[T any](in Input, key string, errs FieldErrors, msg string) T {
	var v T
	raw := String(in, key)
	if raw == "" {
		return v
	}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		errs.Add(key, msg)
		var zero T
		return zero
	}
	return v
}

// Cents parses a non-negative decimal amount into hundredths.
// Amounts with more than two decimals are rounded to the nearest cent.
func Cents(in Input, key string, errs FieldErrors, msg string) int64 {
	raw := String(in, key)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		errs.Add(key, msg)
		return 0
	}
	// float64(math.MaxInt64) is 2^63, one past the largest int64.
	cents := math.Round(f * 100)
	if cents >= float64(math.MaxInt64) {
		errs.Add(key, msg)
		return 0
	}
	return int64(cents)
}

// Int parses a whole number. An absent value yields 0.
func Int(in Input, key string, errs FieldErrors, msg string) int {
	raw := String(in, key)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(key, msg)
		return 0
	}
	return n
}

// Alias returns in with key filled from the first alias present, when key
// itself is absent. The caller's values are not modified.
func Alias(in Input, key string, aliases ...string) Input {
	if in.Has(key) {
		return in
	}
	for _, a := range aliases {
		if !in.Has(a) {
			continue
		}
		out := make(Input, len(in)+1)
		for k, v := range in {
			out[k] = v
		}
		out[key] = in[a]
		return out
	}
	return in
}
