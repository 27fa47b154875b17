package flow

import (
	"context"
	"testing"
	"time"

	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokens is an in-memory OAuthTokenRepository for handler tests.
type stubTokens struct {
	tokens map[string]*models.OAuthToken
}

func (s *stubTokens) GetByConfigEntry(_ context.Context, configEntryID string) (*models.OAuthToken, error) {
	token, ok := s.tokens[configEntryID]
	if !ok {
		return nil, persistence.ErrOAuthTokenNotFound
	}

	return token, nil
}

func oauthDef(configure bool) *models.FlowDefinition {
	def := &models.FlowDefinition{
		Integration:   "nest",
		Type:          models.FlowTypeOAuth,
		OAuthProvider: &models.OAuthProviderRef{Provider: "google"},
	}

	if configure {
		def.Steps = []*models.StepDefinition{{
			ID: StepConfigure,
			Schema: map[string]*models.FieldSpec{
				"poll_interval": {Type: models.FieldTypeNumber},
			},
		}}
	}

	return def
}

func TestOAuth_ChainWithTokens(t *testing.T) {
	tokens := &stubTokens{tokens: map[string]*models.OAuthToken{
		"entry-1": {ConfigEntryID: "entry-1", AccessToken: "at", CreatedAt: time.Now()},
	}}
	handler := NewOAuthHandler(tokens)
	def := oauthDef(false)
	state := &models.FlowState{ConfigEntryID: "entry-1"}

	current, err := handler.InitialStep(def)
	require.NoError(t, err)
	assert.Equal(t, StepPickIntegration, current)

	for _, want := range []string{StepOAuthAuthorize, StepOAuthCallback, StepConfirm} {
		current, err = handler.NextStep(t.Context(), current, state, def)
		require.NoError(t, err)
		assert.Equal(t, want, current)
	}

	_, err = handler.NextStep(t.Context(), current, state, def)
	assert.ErrorIs(t, err, ErrFlowCompleted)
}

func TestOAuth_ConfigureStepEntered(t *testing.T) {
	tokens := &stubTokens{tokens: map[string]*models.OAuthToken{
		"entry-1": {ConfigEntryID: "entry-1", AccessToken: "at"},
	}}
	handler := NewOAuthHandler(tokens)
	def := oauthDef(true)
	state := &models.FlowState{ConfigEntryID: "entry-1"}

	next, err := handler.NextStep(t.Context(), StepOAuthCallback, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepConfigure, next)

	next, err = handler.NextStep(t.Context(), next, state, def)
	require.NoError(t, err)
	assert.Equal(t, StepConfirm, next)
}

func TestOAuth_CallbackWithoutTokens(t *testing.T) {
	handler := NewOAuthHandler(&stubTokens{tokens: map[string]*models.OAuthToken{}})
	def := oauthDef(false)
	state := &models.FlowState{ConfigEntryID: "entry-unknown"}

	_, err := handler.NextStep(t.Context(), StepOAuthCallback, state, def)
	assert.ErrorIs(t, err, persistence.ErrOAuthTokenNotFound)
}

func TestOAuth_CallbackWithoutConfigEntry(t *testing.T) {
	handler := NewOAuthHandler(&stubTokens{})
	def := oauthDef(false)

	_, err := handler.NextStep(t.Context(), StepOAuthCallback, &models.FlowState{}, def)
	assert.ErrorIs(t, err, persistence.ErrOAuthTokenNotFound)
}

func TestOAuth_InvalidTransition(t *testing.T) {
	handler := NewOAuthHandler(&stubTokens{})

	_, err := handler.NextStep(t.Context(), "discover", nil, oauthDef(false))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
