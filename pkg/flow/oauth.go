package flow

import (
	"context"
	"fmt"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// OAuthHandler drives the fixed authorization chain
// pick_integration -> oauth_authorize -> oauth_callback -> (configure)? -> confirm.
// The callback transition requires a stored token record for the flow's
// config entry; configure is entered only when the definition declares
// configuration fields.
type OAuthHandler struct {
	base

	tokens persistence.OAuthTokenRepository
}

func NewOAuthHandler(tokens persistence.OAuthTokenRepository) *OAuthHandler {
	return &OAuthHandler{tokens: tokens}
}

func (h *OAuthHandler) Type() models.FlowType {
	return models.FlowTypeOAuth
}

func (h *OAuthHandler) InitialStep(_ *models.FlowDefinition) (string, error) {
	return StepPickIntegration, nil
}

func (h *OAuthHandler) NextStep(ctx context.Context, current string, state *models.FlowState, def *models.FlowDefinition) (string, error) {
	switch current {
	case StepPickIntegration:
		return StepOAuthAuthorize, nil
	case StepOAuthAuthorize:
		return StepOAuthCallback, nil
	case StepOAuthCallback:
		if err := h.requireTokens(ctx, state); err != nil {
			return "", err
		}

		if def.HasConfigureStep() {
			return StepConfigure, nil
		}

		return StepConfirm, nil
	case StepConfigure:
		return StepConfirm, nil
	case StepConfirm:
		return "", ErrFlowCompleted
	default:
		return "", fmt.Errorf("step '%s' in %s flow: %w", current, def.Type, ErrInvalidTransition)
	}
}

func (h *OAuthHandler) requireTokens(ctx context.Context, state *models.FlowState) error {
	var configEntryID string
	if state != nil {
		configEntryID = state.ConfigEntryID
	}

	if configEntryID == "" {
		return fmt.Errorf("no config entry for flow: %w", persistence.ErrOAuthTokenNotFound)
	}

	_, err := h.tokens.GetByConfigEntry(ctx, configEntryID)
	if err != nil {
		return fmt.Errorf("config entry '%s': %w", configEntryID, err)
	}

	return nil
}
