package flow

import (
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// fieldSpecSchema is the JSON Schema every declared field spec must satisfy.
// Compiled once; the loader is stateless and safe for concurrent use.
var fieldSpecSchema = gojsonschema.NewGoLoader(map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"type": map[string]any{
			"type": "string",
			"enum": []any{"string", "number", "boolean", "password", "select"},
		},
		"required": map[string]any{"type": "boolean"},
		"min":      map[string]any{"type": "number"},
		"max":      map[string]any{"type": "number"},
		"enum":     map[string]any{"type": "array", "minItems": 1},
		"default":  map[string]any{},
		"dynamic_options": map[string]any{
			"type":     "object",
			"required": []any{"endpoint"},
			"properties": map[string]any{
				"endpoint": map[string]any{"type": "string", "format": "uri"},
				"method":   map[string]any{"type": "string", "enum": []any{"GET", "POST"}},
				"params":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
		},
	},
	"required": []any{"type"},
})

// ValidateDefinition checks a candidate flow definition for structural
// soundness: known flow type, step id uniqueness, condition references that
// point strictly backwards, known operators, and well-formed field specs.
// The returned slice is empty when the definition is valid.
func ValidateDefinition(def *models.FlowDefinition) []string {
	var errs []string

	if def == nil {
		return []string{"definition is nil"}
	}

	if !models.ValidFlowType(def.Type) {
		errs = append(errs, fmt.Sprintf("unknown flow type '%s'", def.Type))
	}

	if def.Integration == "" {
		errs = append(errs, "integration is required")
	}

	seen := make(map[string]int, len(def.Steps))

	for i, step := range def.Steps {
		if step.ID == "" {
			errs = append(errs, fmt.Sprintf("step %d has no id", i))

			continue
		}

		if _, dup := seen[step.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate step id '%s'", step.ID))
		}

		seen[step.ID] = i

		errs = append(errs, validateCondition(step, i, seen)...)
		errs = append(errs, validateStepSchema(step)...)
	}

	return errs
}

func validateCondition(step *models.StepDefinition, index int, seen map[string]int) []string {
	cond := step.Condition
	if cond == nil {
		return nil
	}

	var errs []string

	if !models.ValidConditionOperator(cond.Operator) {
		errs = append(errs, fmt.Sprintf("step '%s': unknown operator '%s'", step.ID, cond.Operator))
	}

	switch cond.Operator {
	case models.OperatorExists, models.OperatorNotExists:
		// No comparison value.
	case models.OperatorIn, models.OperatorNotIn:
		if _, ok := cond.Value.([]any); !ok {
			errs = append(errs, fmt.Sprintf("step '%s': operator '%s' requires an array value", step.ID, cond.Operator))
		}
	}

	depIndex, ok := seen[cond.DependsOn]

	switch {
	case cond.DependsOn == step.ID:
		errs = append(errs, fmt.Sprintf("step '%s': condition references itself", step.ID))
	case !ok:
		errs = append(errs, fmt.Sprintf("step '%s': condition references unknown or later step '%s'", step.ID, cond.DependsOn))
	case depIndex >= index:
		errs = append(errs, fmt.Sprintf("step '%s': condition must reference an earlier step, '%s' comes later", step.ID, cond.DependsOn))
	}

	return errs
}

func validateStepSchema(step *models.StepDefinition) []string {
	var errs []string

	for name, spec := range step.Schema {
		if spec == nil {
			errs = append(errs, fmt.Sprintf("step '%s': field '%s' has no spec", step.ID, name))

			continue
		}

		result, err := gojsonschema.Validate(fieldSpecSchema, gojsonschema.NewGoLoader(spec))
		if err != nil {
			errs = append(errs, fmt.Sprintf("step '%s': field '%s': %v", step.ID, name, err))

			continue
		}

		for _, desc := range result.Errors() {
			errs = append(errs, fmt.Sprintf("step '%s': field '%s': %s", step.ID, name, desc.String()))
		}

		if spec.Min != nil && spec.Max != nil && *spec.Min > *spec.Max {
			errs = append(errs, fmt.Sprintf("step '%s': field '%s': min exceeds max", step.ID, name))
		}

		if spec.Type == models.FieldTypeSelect && len(spec.Enum) == 0 && spec.DynamicOptions == nil {
			errs = append(errs, fmt.Sprintf("step '%s': field '%s': select needs an enum or dynamic options", step.ID, name))
		}
	}

	return errs
}
