package service

// ValidationErrors accumulates intake problems keyed by field so the
// caller sees every issue in one response instead of one at a time.
type ValidationErrors struct {
	fields map[string][]string
}

// NewValidationErrors returns an empty accumulator.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{fields: make(map[string][]string)}
}

// Add records a problem under the given field key.
func (v *ValidationErrors) Add(field, message string) {
	v.fields[field] = append(v.fields[field], message)
}

// Empty reports whether no problems were recorded.
func (v *ValidationErrors) Empty() bool {
	return len(v.fields) == 0
}

// Details exposes the accumulated messages keyed by field.
func (v *ValidationErrors) Details() map[string][]string {
	return v.fields
}
