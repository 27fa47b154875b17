// Package schema validates submitted step data against a step's declared
// field schema.
package schema

import (
	"fmt"
	"reflect"

	"github.com/homemesh/onboard/pkg/models"
)

// Validate checks data against the declared field specs. Every field is
// checked so the caller receives the complete error set; validation never
// stops at the first failure. Submitted keys without a declared spec are
// ignored, the UI is allowed to send bookkeeping fields.
func Validate(fieldSchema map[string]*models.FieldSpec, data map[string]any) models.ValidationResult {
	result := models.ValidationResult{Valid: true}

	for name, spec := range fieldSchema {
		value, present := data[name]

		if !present || isEmpty(value) {
			if spec.Required {
				result.AddError(name, fmt.Sprintf("%s is required", name))
			}

			continue
		}

		if err := checkType(name, spec, value); err != "" {
			result.AddError(name, err)

			continue
		}

		if len(spec.Enum) > 0 && !enumMember(spec.Enum, value) {
			result.AddError(name, fmt.Sprintf("%s must be one of the allowed values", name))
		}
	}

	return result
}

func checkType(name string, spec *models.FieldSpec, value any) string {
	switch spec.Type {
	case models.FieldTypeString, models.FieldTypePassword:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("%s must be a string", name)
		}
	case models.FieldTypeNumber:
		number, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%s must be a number", name)
		}

		if spec.Min != nil && number < *spec.Min {
			return fmt.Sprintf("%s must be at least %v", name, *spec.Min)
		}

		if spec.Max != nil && number > *spec.Max {
			return fmt.Sprintf("%s must be at most %v", name, *spec.Max)
		}
	case models.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("%s must be a boolean", name)
		}
	case models.FieldTypeSelect:
		if len(spec.Enum) == 0 {
			return fmt.Sprintf("%s has no selectable values declared", name)
		}

		if !enumMember(spec.Enum, value) {
			return fmt.Sprintf("%s must be one of the allowed values", name)
		}
	}

	return ""
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return s == ""
	}

	return false
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func enumMember(enum []any, value any) bool {
	for _, candidate := range enum {
		if reflect.DeepEqual(candidate, value) {
			return true
		}

		// JSON decoding turns declared ints into float64; compare numerically
		// so an enum of [1, 2] accepts a submitted 1.0 and vice versa.
		cf, cok := toFloat(candidate)
		vf, vok := toFloat(value)

		if cok && vok && cf == vf {
			return true
		}
	}

	return false
}
