// Package flow implements the step-transition state machines behind device
// onboarding: one handler per flow archetype, selected through an explicit
// registry keyed by the definition's flow type.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/homemesh/onboard/pkg/condition"
	"github.com/homemesh/onboard/pkg/models"
	"github.com/homemesh/onboard/pkg/schema"
)

// Well-known step identifiers shared across flow types.
const (
	StepPickIntegration = "pick_integration"
	StepOAuthAuthorize  = "oauth_authorize"
	StepOAuthCallback   = "oauth_callback"
	StepDiscover        = "discover"
	StepConfigure       = "configure"
	StepConfirm         = "confirm"
)

var (
	// ErrInvalidTransition indicates the current step is not a recognized
	// state for the flow's type.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrFlowCompleted indicates NextStep was called on the terminal step.
	ErrFlowCompleted = errors.New("flow already completed")

	// ErrStepNotFound indicates the definition declares no such step.
	ErrStepNotFound = errors.New("step not found")

	// ErrHandlerNotRegistered indicates no handler exists for a flow type.
	ErrHandlerNotRegistered = errors.New("flow type not registered")
)

// Handler is the contract every flow archetype implements. Implementations
// are stateless: each decision is a pure function of the current step, the
// caller-supplied flow state, and the definition.
type Handler interface {
	Type() models.FlowType

	InitialStep(def *models.FlowDefinition) (string, error)
	NextStep(ctx context.Context, current string, state *models.FlowState, def *models.FlowDefinition) (string, error)
	ShouldSkipStep(step *models.StepDefinition, state *models.FlowState, def *models.FlowDefinition) bool
	ValidateStepData(stepID string, data map[string]any, def *models.FlowDefinition) (models.ValidationResult, error)
}

// Registry maps flow types to their handlers. It is populated once at process
// start and read-only afterwards.
type Registry struct {
	logger   *slog.Logger
	handlers map[models.FlowType]Handler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		handlers: make(map[models.FlowType]Handler),
	}
}

func (r *Registry) Register(handler Handler) {
	r.handlers[handler.Type()] = handler
}

func (r *Registry) Get(flowType models.FlowType) (Handler, error) {
	handler, ok := r.handlers[flowType]
	if !ok {
		return nil, fmt.Errorf("flow type '%s': %w", flowType, ErrHandlerNotRegistered)
	}

	return handler, nil
}

func (r *Registry) Types() []models.FlowType {
	types := make([]models.FlowType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}

	return types
}

// base carries the behavior shared by all handlers: condition-driven step
// skipping and schema-driven step validation.
type base struct{}

func (base) ShouldSkipStep(step *models.StepDefinition, state *models.FlowState, _ *models.FlowDefinition) bool {
	if step == nil || step.Condition == nil {
		return false
	}

	var flowData map[string]map[string]any
	if state != nil {
		flowData = state.Data
	}

	return !condition.Evaluate(step.Condition, flowData)
}

func (base) ValidateStepData(stepID string, data map[string]any, def *models.FlowDefinition) (models.ValidationResult, error) {
	step := def.StepByID(stepID)
	if step == nil {
		return models.ValidationResult{}, fmt.Errorf("step '%s': %w", stepID, ErrStepNotFound)
	}

	return schema.Validate(step.Schema, data), nil
}

// answered reports whether the state already carries data for the step, so
// re-derived transitions pass over steps the user has completed.
func answered(state *models.FlowState, stepID string) bool {
	return state != nil && len(state.StepData(stepID)) > 0
}
