// Package web provides HTTP request and response types for the onboarding API.
package web

import "github.com/homemesh/onboard/pkg/models"

// CreateDefinitionRequest represents the request body for creating a new flow
// definition version.
type CreateDefinitionRequest struct {
	Integration        string                    `json:"integration"                   validate:"required,min=2"`
	Type               models.FlowType           `json:"type"                          validate:"required,oneof=wizard oauth discovery hybrid"`
	Steps              []*models.StepDefinition  `json:"steps"`
	OAuthProvider      *models.OAuthProviderRef  `json:"oauth_provider,omitempty"`
	DiscoveryProtocols map[string]map[string]any `json:"discovery_protocols,omitempty"`
	IsDefault          bool                      `json:"is_default"`
}

// Definition builds the domain model from the request body.
func (r CreateDefinitionRequest) Definition() *models.FlowDefinition {
	return &models.FlowDefinition{
		Integration:        r.Integration,
		Type:               r.Type,
		Steps:              r.Steps,
		OAuthProvider:      r.OAuthProvider,
		DiscoveryProtocols: r.DiscoveryProtocols,
		IsDefault:          r.IsDefault,
	}
}

// UpdateDefinitionRequest represents the request body for updating mutable
// definition fields. All fields are optional to support partial updates.
type UpdateDefinitionRequest struct {
	IsDefault *bool `json:"is_default,omitempty"`
}

// Fields converts the request into the persistence layer's field map.
func (r UpdateDefinitionRequest) Fields() map[string]any {
	fields := make(map[string]any)
	if r.IsDefault != nil {
		fields["is_default"] = *r.IsDefault
	}

	return fields
}

// FlowRef selects the definition governing a flow request: an explicit
// version, or the integration's active one.
type FlowRef struct {
	Integration  string `json:"integration,omitempty"`
	DefinitionID string `json:"definition_id,omitempty"`
}

// InitialStepRequest asks for the entry step of a flow.
type InitialStepRequest struct {
	FlowRef
}

// NextStepRequest asks for the step that follows the current one under the
// accumulated flow state.
type NextStepRequest struct {
	FlowRef

	CurrentStep string            `json:"current_step" validate:"required"`
	State       *models.FlowState `json:"state"`
}

// ValidateStepRequest asks for a schema check of submitted step data.
type ValidateStepRequest struct {
	FlowRef

	StepID string         `json:"step_id" validate:"required"`
	Data   map[string]any `json:"data"`
}

// ResolveOptionsRequest asks for the selectable values of one step field.
type ResolveOptionsRequest struct {
	FlowRef

	StepID     string         `json:"step_id" validate:"required"`
	Field      string         `json:"field"   validate:"required"`
	FormValues map[string]any `json:"form_values,omitempty"`
}

// StepResponse carries a single step decision.
type StepResponse struct {
	Step         string `json:"step"`
	Integration  string `json:"integration,omitempty"`
	DefinitionID string `json:"definition_id,omitempty"`
}

// ValidateDefinitionResponse carries the findings of a structural check.
type ValidateDefinitionResponse struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// DiscoveryResponse carries a merged discovery result.
type DiscoveryResponse struct {
	Integration string                    `json:"integration"`
	Devices     []models.DiscoveredDevice `json:"devices"`
}
