package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefinitionError_WrapsSentinel(t *testing.T) {
	err := NewDefinitionError("GetByID", "def-1", ErrFlowDefinitionNotFound)

	assert.True(t, errors.Is(err, ErrFlowDefinitionNotFound))
	assert.True(t, IsDefinitionNotFound(err))
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "def-1")
}

func TestDefinitionError_IntegrationScoped(t *testing.T) {
	err := NewIntegrationError("GetActive", "hue", ErrNoActiveDefinition)

	assert.True(t, IsDefinitionNotFound(err))
	assert.Contains(t, err.Error(), "integration hue")
}

func TestIsHelpers_NonMatching(t *testing.T) {
	plain := fmt.Errorf("disk full")

	assert.False(t, IsDefinitionNotFound(plain))
	assert.False(t, IsOAuthTokenNotFound(plain))
	assert.False(t, IsVersionConflict(plain))
}

func TestIsVersionConflict_Wrapped(t *testing.T) {
	err := fmt.Errorf("activate: %w", ErrVersionConflict)
	assert.True(t, IsVersionConflict(err))
}
