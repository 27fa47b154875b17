package models

// ValidationResult carries the outcome of validating one step's submitted
// data. Errors always holds the complete set of per-field messages, never
// just the first failure.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors map[string]string `json:"errors,omitempty"`
}

// AddError records a field error and marks the result invalid.
func (r *ValidationResult) AddError(field, message string) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}

	r.Errors[field] = message
	r.Valid = false
}
