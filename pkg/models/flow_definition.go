// Package models defines the core domain models for device onboarding flows.
package models

import "time"

// FlowType identifies the archetype of an onboarding flow. The set is closed;
// each value has a dedicated handler registered at process start.
type FlowType string

const (
	FlowTypeWizard    FlowType = "wizard"
	FlowTypeOAuth     FlowType = "oauth"
	FlowTypeDiscovery FlowType = "discovery"
	FlowTypeHybrid    FlowType = "hybrid"
)

// ValidFlowType reports whether t is one of the known flow types.
func ValidFlowType(t FlowType) bool {
	switch t {
	case FlowTypeWizard, FlowTypeOAuth, FlowTypeDiscovery, FlowTypeHybrid:
		return true
	default:
		return false
	}
}

// OAuthProviderRef points at the OAuth provider an oauth-capable flow uses.
type OAuthProviderRef struct {
	Provider string `json:"provider"            validate:"required"`
	AuthURL  string `json:"auth_url,omitempty"`
	Scopes   []string `json:"scopes,omitempty"`
}

// FlowDefinition is the versioned, administrator-authored description of an
// onboarding flow for one integration. Versions are immutable once created;
// at most one version per integration is active at any time (enforced by the
// persistence layer, not by flow handlers).
type FlowDefinition struct {
	ID                 string                    `json:"id"`
	Integration        string                    `json:"integration" validate:"required"`
	Version            int                       `json:"version"`
	Type               FlowType                  `json:"type"        validate:"required"`
	Steps              []*StepDefinition         `json:"steps"`
	OAuthProvider      *OAuthProviderRef         `json:"oauth_provider,omitempty"`
	DiscoveryProtocols map[string]map[string]any `json:"discovery_protocols,omitempty"`
	IsActive           bool                      `json:"is_active"`
	IsDefault          bool                      `json:"is_default"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// StepByID returns the step with the given identifier, or nil.
func (d *FlowDefinition) StepByID(id string) *StepDefinition {
	for _, step := range d.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// StepIndex returns the position of the step with the given identifier in
// declaration order, or -1 when the definition has no such step.
func (d *FlowDefinition) StepIndex(id string) int {
	for i, step := range d.Steps {
		if step.ID == id {
			return i
		}
	}

	return -1
}

// HasConfigureStep reports whether the definition declares a configure step
// with at least one field. OAuth and discovery chains only enter "configure"
// when this holds.
func (d *FlowDefinition) HasConfigureStep() bool {
	step := d.StepByID("configure")

	return step != nil && len(step.Schema) > 0
}

// ProtocolNames returns the declared discovery protocol names.
func (d *FlowDefinition) ProtocolNames() []string {
	names := make([]string, 0, len(d.DiscoveryProtocols))
	for name := range d.DiscoveryProtocols {
		names = append(names, name)
	}

	return names
}
