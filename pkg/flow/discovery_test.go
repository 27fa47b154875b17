package flow

import (
	"testing"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discoveryDef(configure bool) *models.FlowDefinition {
	def := &models.FlowDefinition{
		Integration: "hub",
		Type:        models.FlowTypeDiscovery,
		DiscoveryProtocols: map[string]map[string]any{
			"hub": {"base_url": "http://hub.local"},
		},
	}

	if configure {
		def.Steps = []*models.StepDefinition{{
			ID: StepConfigure,
			Schema: map[string]*models.FieldSpec{
				"area": {Type: models.FieldTypeString},
			},
		}}
	}

	return def
}

func TestDiscovery_InitialStep(t *testing.T) {
	handler := NewDiscoveryHandler()

	initial, err := handler.InitialStep(discoveryDef(false))
	require.NoError(t, err)
	assert.Equal(t, StepDiscover, initial)
}

func TestDiscovery_SelectedDeviceSkipsPickIntegration(t *testing.T) {
	handler := NewDiscoveryHandler()
	state := &models.FlowState{
		SelectedDevice: &models.DiscoveredDevice{ID: "light-1", Protocol: "hub"},
	}

	next, err := handler.NextStep(t.Context(), StepDiscover, state, discoveryDef(true))
	require.NoError(t, err)
	assert.Equal(t, StepConfigure, next)

	next, err = handler.NextStep(t.Context(), StepDiscover, state, discoveryDef(false))
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, next)
}

func TestDiscovery_NoSelectionGoesToPickIntegration(t *testing.T) {
	handler := NewDiscoveryHandler()

	next, err := handler.NextStep(t.Context(), StepDiscover, &models.FlowState{}, discoveryDef(false))
	require.NoError(t, err)
	assert.Equal(t, StepPickIntegration, next)

	next, err = handler.NextStep(t.Context(), next, &models.FlowState{}, discoveryDef(false))
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, next)
}

func TestDiscovery_Terminal(t *testing.T) {
	handler := NewDiscoveryHandler()

	_, err := handler.NextStep(t.Context(), StepConfirm, nil, discoveryDef(false))
	assert.ErrorIs(t, err, ErrFlowCompleted)

	_, err = handler.NextStep(t.Context(), "oauth_authorize", nil, discoveryDef(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
