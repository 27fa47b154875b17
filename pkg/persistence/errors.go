// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowDefinitionNotFound indicates a flow definition was not found by
	// the given identifier or integration.
	ErrFlowDefinitionNotFound = errors.New("flow definition not found")

	// ErrNoActiveDefinition indicates an integration has no active flow
	// definition version.
	ErrNoActiveDefinition = errors.New("no active flow definition")

	// ErrOAuthTokenNotFound indicates no token record exists for the given
	// config entry.
	ErrOAuthTokenNotFound = errors.New("tokens not found")

	// ErrVersionConflict indicates a concurrent activation or versioning race
	// was detected and not resolved by the internal retry.
	ErrVersionConflict = errors.New("flow definition version conflict")

	// ErrImmutableVersion indicates an attempt to change fields that are
	// frozen once a version is created.
	ErrImmutableVersion = errors.New("flow definition versions are immutable")
)

// DefinitionError wraps flow-definition errors with operation context.
type DefinitionError struct {
	Op           string // Operation being performed (e.g., "GetByID", "Activate")
	DefinitionID string // Definition ID if applicable
	Integration  string // Integration if applicable
	Err          error  // Underlying error
}

func (e *DefinitionError) Error() string {
	target := e.DefinitionID
	if target == "" {
		target = "integration " + e.Integration
	}

	return fmt.Sprintf("%s operation failed for flow definition %s: %v", e.Op, target, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDefinitionError creates a new definition error with context.
func NewDefinitionError(op, definitionID string, err error) *DefinitionError {
	return &DefinitionError{
		Op:           op,
		DefinitionID: definitionID,
		Err:          err,
	}
}

// NewIntegrationError creates a new definition error for integration-scoped operations.
func NewIntegrationError(op, integration string, err error) *DefinitionError {
	return &DefinitionError{
		Op:          op,
		Integration: integration,
		Err:         err,
	}
}

// IsDefinitionNotFound checks if an error indicates a flow definition was not found.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrFlowDefinitionNotFound) || errors.Is(err, ErrNoActiveDefinition)
}

// IsOAuthTokenNotFound checks if an error indicates a token record was not found.
func IsOAuthTokenNotFound(err error) bool {
	return errors.Is(err, ErrOAuthTokenNotFound)
}

// IsVersionConflict checks if an error indicates a versioning race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
