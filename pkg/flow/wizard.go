package flow

import (
	"context"
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
)

// WizardHandler walks the definition's declared steps in order, skipping every
// consecutive step whose condition evaluates false, and terminates at confirm.
type WizardHandler struct {
	base
}

func NewWizardHandler() *WizardHandler {
	return &WizardHandler{}
}

func (h *WizardHandler) Type() models.FlowType {
	return models.FlowTypeWizard
}

func (h *WizardHandler) InitialStep(def *models.FlowDefinition) (string, error) {
	return h.nextFrom(0, nil, def)
}

func (h *WizardHandler) NextStep(_ context.Context, current string, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	switch current {
	case StepConfirm:
		return "", ErrFlowCompleted
	case StepPickIntegration:
		// Implicit entry step before the declared sequence.
		return h.nextFrom(0, state, def)
	}

	idx := def.StepIndex(current)
	if idx < 0 {
		return "", fmt.Errorf("step '%s' in %s flow: %w", current, def.Type, ErrInvalidTransition)
	}

	return h.nextFrom(idx+1, state, def)
}

// nextFrom returns the first step at or after position start that is neither
// condition-skipped nor already answered, or confirm when the sequence is
// exhausted.
func (h *WizardHandler) nextFrom(start int, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	for i := start; i < len(def.Steps); i++ {
		step := def.Steps[i]

		if h.ShouldSkipStep(step, state, def) || answered(state, step.ID) {
			continue
		}

		return step.ID, nil
	}

	return StepConfirm, nil
}
