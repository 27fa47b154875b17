package models

// ConditionOperator enumerates the comparison operators a step condition may
// use against accumulated flow data.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorContains    ConditionOperator = "contains"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorExists      ConditionOperator = "exists"
	OperatorNotExists   ConditionOperator = "not_exists"
	OperatorIn          ConditionOperator = "in"
	OperatorNotIn       ConditionOperator = "not_in"
)

// ValidConditionOperator reports whether op is one of the known operators.
func ValidConditionOperator(op ConditionOperator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals, OperatorContains,
		OperatorGreaterThan, OperatorLessThan,
		OperatorExists, OperatorNotExists,
		OperatorIn, OperatorNotIn:
		return true
	default:
		return false
	}
}

// StepCondition gates a step's visibility on data submitted by an earlier
// step. DependsOn must reference a step that appears strictly earlier in the
// definition's step order; Field optionally drills into that step's data.
// Value is unused for exists/not_exists.
type StepCondition struct {
	DependsOn string            `json:"depends_on" validate:"required"`
	Field     string            `json:"field,omitempty"`
	Operator  ConditionOperator `json:"operator"   validate:"required"`
	Value     any               `json:"value,omitempty"`
}
