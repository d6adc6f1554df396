package contribution

import "strings"

// FieldError names one failed rule on one request
// field. Field uses the JSON name.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned by Request.Validate when
// one or more fields break their rules.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}

	return "invalid contribution: " + strings.Join(parts, ", ")
}
