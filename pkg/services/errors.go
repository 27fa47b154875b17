// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/homemesh/onboard/pkg/flow"
	"github.com/homemesh/onboard/pkg/options"
	"github.com/homemesh/onboard/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrIntegrationRequired = errors.New("integration is required")
	ErrDefinitionInvalid   = errors.New("flow definition failed validation")
	ErrStepDataInvalid     = errors.New("step data failed validation")
	ErrDefinitionNil       = errors.New("flow definition cannot be nil")

	// Business Logic Conflicts (409 Conflict).
	ErrCannotModifyVersion = errors.New("cannot modify a created definition version")
	ErrCannotDeleteActive  = errors.New("cannot delete the active definition version")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationIssuesError carries the individual findings of a definition
// validation pass alongside the sentinel.
type ValidationIssuesError struct {
	Issues []string
}

func (e *ValidationIssuesError) Error() string {
	return fmt.Sprintf("%v: %d issue(s)", ErrDefinitionInvalid, len(e.Issues))
}

func (e *ValidationIssuesError) Unwrap() error {
	return ErrDefinitionInvalid
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrIntegrationRequired) ||
		errors.Is(err, ErrDefinitionInvalid) ||
		errors.Is(err, ErrStepDataInvalid) ||
		errors.Is(err, ErrDefinitionNil)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsDefinitionNotFound(err) ||
		persistence.IsOAuthTokenNotFound(err) ||
		errors.Is(err, flow.ErrStepNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyVersion) ||
		errors.Is(err, ErrCannotDeleteActive) ||
		persistence.IsVersionConflict(err) ||
		errors.Is(err, persistence.ErrImmutableVersion)
}

// IsInvalidTransitionError checks if an error reports a transition the flow's
// state machine does not admit (HTTP 422).
func IsInvalidTransitionError(err error) bool {
	return errors.Is(err, flow.ErrInvalidTransition) ||
		errors.Is(err, flow.ErrFlowCompleted) ||
		errors.Is(err, flow.ErrHandlerNotRegistered)
}

// IsResolutionError checks if an error reports an unreachable or malformed
// dynamic-options source (HTTP 502).
func IsResolutionError(err error) bool {
	return errors.Is(err, options.ErrResolutionFailed)
}
