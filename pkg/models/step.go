package models

// FieldType enumerates the declared types a step field may carry. The wire
// representation of submitted values is JSON, so numbers arrive as float64.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeBoolean  FieldType = "boolean"
	FieldTypePassword FieldType = "password"
	FieldTypeSelect   FieldType = "select"
)

// ValidFieldType reports whether t is one of the known field types.
func ValidFieldType(t FieldType) bool {
	switch t {
	case FieldTypeString, FieldTypeNumber, FieldTypeBoolean, FieldTypePassword, FieldTypeSelect:
		return true
	default:
		return false
	}
}

// DynamicOptionsSource declares where a field's selectable options are
// resolved from at request time.
type DynamicOptionsSource struct {
	Endpoint string   `json:"endpoint" validate:"required,url"`
	Method   string   `json:"method,omitempty"`
	Params   []string `json:"params,omitempty"` // form fields forwarded to the lookup
}

// FieldSpec describes a single field of a step's data schema.
type FieldSpec struct {
	Type           FieldType             `json:"type"`
	Required       bool                  `json:"required"`
	Min            *float64              `json:"min,omitempty"`
	Max            *float64              `json:"max,omitempty"`
	Enum           []any                 `json:"enum,omitempty"`
	Default        any                   `json:"default,omitempty"`
	DynamicOptions *DynamicOptionsSource `json:"dynamic_options,omitempty"`
}

// StepDefinition is one screen of a flow: a data schema plus an optional
// visibility condition evaluated against previously submitted data.
type StepDefinition struct {
	ID          string                `json:"id"    validate:"required"`
	Title       string                `json:"title" validate:"required"`
	Description string                `json:"description,omitempty"`
	Schema      map[string]*FieldSpec `json:"schema,omitempty"`
	Condition   *StepCondition        `json:"condition,omitempty"`
}

// Option is one selectable value for a select or dynamically populated field.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}
