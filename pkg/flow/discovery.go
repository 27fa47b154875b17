package flow

import (
	"context"
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
)

// DiscoveryHandler drives discovery-driven onboarding:
// discover -> (pick_integration)? -> (configure)? -> confirm.
// pick_integration is skipped when a device was selected during discovery;
// configure only runs when the definition declares configuration fields.
type DiscoveryHandler struct {
	base
}

func NewDiscoveryHandler() *DiscoveryHandler {
	return &DiscoveryHandler{}
}

func (h *DiscoveryHandler) Type() models.FlowType {
	return models.FlowTypeDiscovery
}

func (h *DiscoveryHandler) InitialStep(_ *models.FlowDefinition) (string, error) {
	return StepDiscover, nil
}

func (h *DiscoveryHandler) NextStep(_ context.Context, current string, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	switch current {
	case StepDiscover:
		if state == nil || state.SelectedDevice == nil {
			return StepPickIntegration, nil
		}

		return h.afterSelection(def), nil
	case StepPickIntegration:
		return h.afterSelection(def), nil
	case StepConfigure:
		return StepConfirm, nil
	case StepConfirm:
		return "", ErrFlowCompleted
	default:
		return "", fmt.Errorf("step '%s' in %s flow: %w", current, def.Type, ErrInvalidTransition)
	}
}

func (h *DiscoveryHandler) afterSelection(def *models.FlowDefinition) string {
	if def.HasConfigureStep() {
		return StepConfigure
	}

	return StepConfirm
}
