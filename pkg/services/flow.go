package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/homemesh/onboard/pkg/eventbus"
	"github.com/homemesh/onboard/pkg/events"
	"github.com/homemesh/onboard/pkg/flow"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/options"
	"github.com/homemesh/onboard/pkg/persistence"
)

// Flow answers step-transition questions for onboarding runs. It resolves the
// governing definition, picks the handler for its flow type, and delegates;
// it holds no flow-instance state of its own.
type Flow struct {
	registry    *flow.Registry
	resolver    *options.Resolver
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewFlow creates a new flow service. The publisher may be nil, in which case
// completion events are skipped.
func NewFlow(registry *flow.Registry, resolver *options.Resolver, p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Flow {
	return &Flow{
		registry:    registry,
		resolver:    resolver,
		persistence: p,
		publisher:   publisher,
		logger:      logger,
	}
}

// DefinitionRef selects the definition governing a request: an explicit
// version by ID, or the integration's active version.
type DefinitionRef struct {
	DefinitionID string
	Integration  string
}

func (s *Flow) resolveDefinition(ctx context.Context, ref DefinitionRef) (*models.FlowDefinition, error) {
	if ref.DefinitionID != "" {
		return s.persistence.FlowDefinitions().GetByID(ctx, ref.DefinitionID)
	}

	if ref.Integration == "" {
		return nil, ErrIntegrationRequired
	}

	return s.persistence.FlowDefinitions().GetActive(ctx, ref.Integration)
}

// InitialStep returns the entry step of the referenced definition's flow.
func (s *Flow) InitialStep(ctx context.Context, ref DefinitionRef) (string, *models.FlowDefinition, error) {
	def, err := s.resolveDefinition(ctx, ref)
	if err != nil {
		return "", nil, err
	}

	handler, err := s.registry.Get(def.Type)
	if err != nil {
		return "", nil, err
	}

	step, err := handler.InitialStep(def)
	if err != nil {
		return "", nil, err
	}

	return step, def, nil
}

// NextStep computes the step that follows current under the accumulated state.
func (s *Flow) NextStep(ctx context.Context, ref DefinitionRef, current string, state *models.FlowState) (string, error) {
	def, err := s.resolveDefinition(ctx, ref)
	if err != nil {
		return "", err
	}

	handler, err := s.registry.Get(def.Type)
	if err != nil {
		return "", err
	}

	next, err := handler.NextStep(ctx, current, state, def)
	if err != nil {
		return "", fmt.Errorf("flow type '%s', step '%s': %w", def.Type, current, err)
	}

	s.logger.DebugContext(ctx, "flow transition",
		"integration", def.Integration, "flow_type", def.Type, "from", current, "to", next)

	// The engine holds no flow-instance state, so reaching the terminal step
	// is the completion signal.
	if next == flow.StepConfirm {
		s.publishCompleted(ctx, def.Integration, state)
	}

	return next, nil
}

func (s *Flow) publishCompleted(ctx context.Context, integration string, state *models.FlowState) {
	if s.publisher == nil {
		return
	}

	event := events.FlowCompleted{
		BaseEvent: events.NewBaseEvent(events.FlowCompletedEvent, integration),
	}
	if state != nil {
		event.FlowID = state.FlowID
		event.ConfigEntryID = state.ConfigEntryID
	}

	if err := s.publisher.Publish(ctx, integration, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish flow completion event",
			"integration", integration, "error", err)
	}
}

// ValidateStep checks submitted data against the step's field schema. A
// schema violation is reported in the result, not as an error; errors are
// reserved for unknown steps and definitions.
func (s *Flow) ValidateStep(ctx context.Context, ref DefinitionRef, stepID string, data map[string]any) (models.ValidationResult, error) {
	def, err := s.resolveDefinition(ctx, ref)
	if err != nil {
		return models.ValidationResult{}, err
	}

	handler, err := s.registry.Get(def.Type)
	if err != nil {
		return models.ValidationResult{}, err
	}

	return handler.ValidateStepData(stepID, data, def)
}

// ResolveOptions returns the selectable values for one step field: the
// resolved dynamic options when the field declares a source, else the static
// enum.
func (s *Flow) ResolveOptions(ctx context.Context, ref DefinitionRef, stepID, field string, formValues map[string]any) ([]models.Option, error) {
	def, err := s.resolveDefinition(ctx, ref)
	if err != nil {
		return nil, err
	}

	step := def.StepByID(stepID)
	if step == nil {
		return nil, fmt.Errorf("step '%s': %w", stepID, flow.ErrStepNotFound)
	}

	spec, ok := step.Schema[field]
	if !ok {
		return nil, NewValidationError("ResolveOptions", "unknown_field",
			fmt.Sprintf("step '%s' declares no field '%s'", stepID, field), ErrInvalidRequest)
	}

	if spec.DynamicOptions != nil {
		return s.resolver.Resolve(ctx, spec, options.Context{
			Integration: def.Integration,
			Field:       field,
			FormValues:  formValues,
		})
	}

	if len(spec.Enum) > 0 {
		opts := make([]models.Option, 0, len(spec.Enum))
		for _, value := range spec.Enum {
			opts = append(opts, models.Option{Label: fmt.Sprintf("%v", value), Value: value})
		}

		return opts, nil
	}

	return nil, NewValidationError("ResolveOptions", "no_options",
		fmt.Sprintf("field '%s' declares neither dynamic options nor an enum", field), ErrInvalidRequest)
}
