package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homemesh/onboard/pkg/eventbus"
	"github.com/homemesh/onboard/pkg/events"
	"github.com/homemesh/onboard/pkg/flow"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/persistence"
)

// ErrDefinitionNotFound is returned when a flow definition is not found.
var ErrDefinitionNotFound = persistence.ErrFlowDefinitionNotFound

// Definition manages the lifecycle of versioned flow definitions.
type Definition struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewDefinition creates a new definition service. The publisher may be nil,
// in which case lifecycle events are skipped.
func NewDefinition(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Definition {
	return &Definition{
		persistence: p,
		publisher:   publisher,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Validate runs the structural validator and returns its findings without
// touching storage.
func (s *Definition) Validate(def *models.FlowDefinition) []string {
	if def == nil {
		return []string{ErrDefinitionNil.Error()}
	}

	return flow.ValidateDefinition(def)
}

// Create validates and stores a new definition version. The version number is
// assigned by the persistence layer; new versions always start inactive.
func (s *Definition) Create(ctx context.Context, def *models.FlowDefinition) (*models.FlowDefinition, error) {
	if def == nil {
		return nil, ErrDefinitionNil
	}

	if issues := flow.ValidateDefinition(def); len(issues) > 0 {
		return nil, &ValidationIssuesError{Issues: issues}
	}

	created, err := s.persistence.FlowDefinitions().Create(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow definition: %w", err)
	}

	s.publish(ctx, created.Integration, events.DefinitionCreated{
		BaseEvent:    events.NewBaseEvent(events.DefinitionCreatedEvent, created.Integration),
		DefinitionID: created.ID,
		Version:      created.Version,
		FlowType:     created.Type,
	})

	return created, nil
}

// Get returns one definition version by ID.
func (s *Definition) Get(ctx context.Context, id string) (*models.FlowDefinition, error) {
	return s.persistence.FlowDefinitions().GetByID(ctx, id)
}

// GetActive returns the integration's active definition version.
func (s *Definition) GetActive(ctx context.Context, integration string) (*models.FlowDefinition, error) {
	if integration == "" {
		return nil, ErrIntegrationRequired
	}

	return s.persistence.FlowDefinitions().GetActive(ctx, integration)
}

// List returns all definition versions for an integration, oldest first.
func (s *Definition) List(ctx context.Context, integration string) ([]*models.FlowDefinition, error) {
	if integration == "" {
		return nil, ErrIntegrationRequired
	}

	return s.persistence.FlowDefinitions().ListByIntegration(ctx, integration)
}

// Update changes mutable fields of a definition version. Versioned content is
// immutable; the persistence layer reports such attempts as conflicts.
func (s *Definition) Update(ctx context.Context, id string, fields map[string]any) (*models.FlowDefinition, error) {
	if len(fields) == 0 {
		return nil, NewValidationError("Update", "empty_update", "no fields to update", ErrInvalidRequest)
	}

	return s.persistence.FlowDefinitions().Update(ctx, id, fields)
}

// Activate makes the given version the integration's single active one.
func (s *Definition) Activate(ctx context.Context, id string) (*models.FlowDefinition, error) {
	if err := s.persistence.FlowDefinitions().Activate(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to activate flow definition: %w", err)
	}

	activated, err := s.persistence.FlowDefinitions().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "flow definition activated",
		"definition_id", activated.ID, "integration", activated.Integration, "version", activated.Version)

	s.publish(ctx, activated.Integration, events.DefinitionActivated{
		BaseEvent:    events.NewBaseEvent(events.DefinitionActivatedEvent, activated.Integration),
		DefinitionID: activated.ID,
		Version:      activated.Version,
	})

	return activated, nil
}

// Delete removes an inactive definition version.
func (s *Definition) Delete(ctx context.Context, id string) error {
	err := s.persistence.FlowDefinitions().Delete(ctx, id)
	if err != nil {
		if persistence.IsVersionConflict(err) {
			return fmt.Errorf("%w: %w", ErrCannotDeleteActive, err)
		}

		return err
	}

	return nil
}

func (s *Definition) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish definition event",
			"event_type", event.GetType(), "error", err)
	}
}
