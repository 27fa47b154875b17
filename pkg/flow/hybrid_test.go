package flow

import (
	"testing"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hybridHandler(tokens map[string]*models.OAuthToken) *HybridHandler {
	return NewHybridHandler(NewOAuthHandler(&stubTokens{tokens: tokens}))
}

func TestHybrid_InitialStepPrecedence(t *testing.T) {
	handler := hybridHandler(nil)

	withProtocols := &models.FlowDefinition{
		Type:               models.FlowTypeHybrid,
		DiscoveryProtocols: map[string]map[string]any{"hub": {}},
	}

	initial, err := handler.InitialStep(withProtocols)
	require.NoError(t, err)
	assert.Equal(t, StepDiscover, initial)

	withoutProtocols := &models.FlowDefinition{Type: models.FlowTypeHybrid}

	initial, err = handler.InitialStep(withoutProtocols)
	require.NoError(t, err)
	assert.Equal(t, StepPickIntegration, initial)
}

func TestHybrid_OAuthPathTakesPrecedence(t *testing.T) {
	handler := hybridHandler(map[string]*models.OAuthToken{
		"entry-1": {ConfigEntryID: "entry-1", AccessToken: "at"},
	})

	def := &models.FlowDefinition{
		Type:          models.FlowTypeHybrid,
		OAuthProvider: &models.OAuthProviderRef{Provider: "google"},
		Steps: []*models.StepDefinition{
			{ID: "room", Title: "Room"},
		},
	}
	state := &models.FlowState{ConfigEntryID: "entry-1"}

	next, err := handler.NextStep(t.Context(), StepPickIntegration, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepOAuthAuthorize, next)

	next, err = handler.NextStep(t.Context(), next, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepOAuthCallback, next)

	// After the callback the flow falls through to the declared wizard steps.
	next, err = handler.NextStep(t.Context(), next, state, def)
	require.NoError(t, err)
	assert.Equal(t, "room", next)

	next, err = handler.NextStep(t.Context(), next, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, next)
}

func TestHybrid_WizardPathWithoutOAuth(t *testing.T) {
	handler := hybridHandler(nil)

	def := &models.FlowDefinition{
		Type: models.FlowTypeHybrid,
		Steps: []*models.StepDefinition{
			{ID: "brand"},
			{ID: "model", Condition: &models.StepCondition{
				DependsOn: "brand", Field: "brand", Operator: models.OperatorEquals, Value: "philips",
			}},
		},
	}

	state := &models.FlowState{Data: map[string]map[string]any{
		"brand": {"brand": "sony"},
	}}

	next, err := handler.NextStep(t.Context(), StepPickIntegration, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, next)

	state.Data["brand"]["brand"] = "philips"

	next, err = handler.NextStep(t.Context(), StepPickIntegration, state, def)
	require.NoError(t, err)
	assert.Equal(t, "model", next)
}

func TestHybrid_DiscoverySelectionRoutesPastPickIntegration(t *testing.T) {
	handler := hybridHandler(nil)

	def := &models.FlowDefinition{
		Type:               models.FlowTypeHybrid,
		DiscoveryProtocols: map[string]map[string]any{"hub": {}},
		Steps: []*models.StepDefinition{{
			ID:     StepConfigure,
			Schema: map[string]*models.FieldSpec{"area": {Type: models.FieldTypeString}},
		}},
	}

	selected := &models.FlowState{SelectedDevice: &models.DiscoveredDevice{ID: "d1", Protocol: "hub"}}

	next, err := handler.NextStep(t.Context(), StepDiscover, selected, def)
	require.NoError(t, err)
	assert.Equal(t, StepConfigure, next)

	unselected := &models.FlowState{}

	next, err = handler.NextStep(t.Context(), StepDiscover, unselected, def)
	require.NoError(t, err)
	assert.Equal(t, StepPickIntegration, next)
}

func TestHybrid_TransitionsArePure(t *testing.T) {
	handler := hybridHandler(nil)

	def := &models.FlowDefinition{
		Type:  models.FlowTypeHybrid,
		Steps: []*models.StepDefinition{{ID: "brand"}, {ID: "room"}},
	}
	state := &models.FlowState{Data: map[string]map[string]any{"brand": {"brand": "philips"}}}

	first, err := handler.NextStep(t.Context(), StepPickIntegration, state, def)
	require.NoError(t, err)

	for range 5 {
		again, err := handler.NextStep(t.Context(), StepPickIntegration, state, def)
		require.NoError(t, err)
		assert.Equal(t, first, again, "same inputs must yield the same transition")
	}
}

func TestHybrid_Terminal(t *testing.T) {
	handler := hybridHandler(nil)
	def := &models.FlowDefinition{Type: models.FlowTypeHybrid}

	_, err := handler.NextStep(t.Context(), StepConfirm, nil, def)
	assert.ErrorIs(t, err, ErrFlowCompleted)

	_, err = handler.NextStep(t.Context(), "unknown_step", nil, def)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
