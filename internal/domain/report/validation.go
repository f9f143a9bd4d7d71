package report

import (
	"sort"
	"strings"
)

// FieldErrors maps a form field to its message. A non-empty value is an error
// that matches ErrValidation.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	if len(f) == 0 {
		return ErrValidation.Error()
	}
	keys := f.Keys()
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+f[key])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (f FieldErrors) Unwrap() error { return ErrValidation }

func (f FieldErrors) Fields() map[string]string {
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f FieldErrors) Keys() []string {
	keys := make([]string, 0, len(f))
	for key := range f {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (f FieldErrors) Add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

// Err returns nil when no field failed.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return f
}
