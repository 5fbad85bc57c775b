package config

import "fmt"

// FieldError carries the offending field path and the reason so the CLI can
// point at the exact setting.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// seedField renders Seed[name] paths.
func seedField(name string) string {
	if name == "" {
		return "Seed[]"
	}
	return fmt.Sprintf("Seed[%s]", name)
}
