package flow

import (
	"context"
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
)

// reservedSteps are the well-known chain steps; everything else declared by a
// definition is treated as a wizard step by the hybrid handler.
var reservedSteps = map[string]bool{
	StepPickIntegration: true,
	StepOAuthAuthorize:  true,
	StepOAuthCallback:   true,
	StepDiscover:        true,
	StepConfigure:       true,
	StepConfirm:         true,
}

// HybridHandler composes the other archetypes. The initial step is chosen by
// precedence (discovery protocols -> discover, else pick_integration); every
// later transition is re-derived from what the definition declares: an OAuth
// provider routes through the authorization chain, declared wizard steps
// route through the wizard sequence, and configure/confirm close the flow.
// Each decision is a pure function of (current, state, definition).
type HybridHandler struct {
	base

	oauth  *OAuthHandler
	wizard *WizardHandler
}

func NewHybridHandler(oauth *OAuthHandler) *HybridHandler {
	return &HybridHandler{
		oauth:  oauth,
		wizard: NewWizardHandler(),
	}
}

func (h *HybridHandler) Type() models.FlowType {
	return models.FlowTypeHybrid
}

func (h *HybridHandler) InitialStep(def *models.FlowDefinition) (string, error) {
	if len(def.DiscoveryProtocols) > 0 {
		return StepDiscover, nil
	}

	return StepPickIntegration, nil
}

func (h *HybridHandler) NextStep(ctx context.Context, current string, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	switch current {
	case StepDiscover:
		if state == nil || state.SelectedDevice == nil {
			return StepPickIntegration, nil
		}

		return h.afterEntry(ctx, state, def)
	case StepPickIntegration:
		return h.afterEntry(ctx, state, def)
	case StepOAuthAuthorize:
		return StepOAuthCallback, nil
	case StepOAuthCallback:
		if err := h.oauth.requireTokens(ctx, state); err != nil {
			return "", err
		}

		return h.firstWizardStep(state, def), nil
	case StepConfigure:
		return StepConfirm, nil
	case StepConfirm:
		return "", ErrFlowCompleted
	default:
		// A declared wizard step: continue the wizard sequence.
		idx := def.StepIndex(current)
		if idx < 0 || reservedSteps[current] {
			return "", fmt.Errorf("step '%s' in %s flow: %w", current, def.Type, ErrInvalidTransition)
		}

		return h.wizardFrom(idx+1, state, def), nil
	}
}

// afterEntry decides where the flow goes once an integration or device is
// chosen: the OAuth chain when the definition declares a provider, else the
// wizard sequence when wizard steps exist, else configure/confirm.
func (h *HybridHandler) afterEntry(_ context.Context, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	if def.OAuthProvider != nil {
		return StepOAuthAuthorize, nil
	}

	return h.firstWizardStep(state, def), nil
}

func (h *HybridHandler) firstWizardStep(state *models.FlowState, def *models.FlowDefinition) string {
	return h.wizardFrom(0, state, def)
}

func (h *HybridHandler) wizardFrom(start int, state *models.FlowState, def *models.FlowDefinition) string {
	for i := start; i < len(def.Steps); i++ {
		step := def.Steps[i]

		if reservedSteps[step.ID] {
			continue
		}

		if h.ShouldSkipStep(step, state, def) || answered(state, step.ID) {
			continue
		}

		return step.ID
	}

	if def.HasConfigureStep() && !answered(state, StepConfigure) {
		return StepConfigure
	}

	return StepConfirm
}
