// Package persistence provides the data storage abstraction for flow
// definitions and OAuth token records.
package persistence

import (
	"context"

	"github.com/homemesh/onboard/pkg/models"
)

// FlowDefinitionRepository stores versioned flow definitions. Create assigns
// the next version number for the definition's integration; versions are
// immutable once created. Activate is the only multi-row mutation and must be
// atomic: it sets is_active on exactly one version and clears it on every
// sibling of the same integration, serialized per integration.
type FlowDefinitionRepository interface {
	Create(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error)
	GetByID(ctx context.Context, id string) (*models.FlowDefinition, error)
	GetActive(ctx context.Context, integration string) (*models.FlowDefinition, error)
	GetByIntegrationAndVersion(ctx context.Context, integration string, version int) (*models.FlowDefinition, error)
	ListByIntegration(ctx context.Context, integration string) ([]*models.FlowDefinition, error)
	Update(ctx context.Context, id string, fields map[string]any) (*models.FlowDefinition, error)
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// OAuthTokenRepository reads token records keyed by config-entry id. Tokens
// are written by the surrounding auth layer; the flow engine only consumes
// them at the oauth_callback transition.
type OAuthTokenRepository interface {
	GetByConfigEntry(ctx context.Context, configEntryID string) (*models.OAuthToken, error)
}

type Persistence interface {
	FlowDefinitions() FlowDefinitionRepository
	OAuthTokens() OAuthTokenRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
