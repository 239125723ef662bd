// Package services provides the application service layer over the
// orchestration engine: request validation, error classification, and
// event publishing around the core packages.
package services

import (
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInvalidWorkflowType = errors.New("invalid workflow type")
	ErrCustomerIDRequired  = errors.New("customer ID cannot be empty")
	ErrOperatorIDRequired  = errors.New("operator ID cannot be empty")
	ErrExecutionIDRequired = errors.New("execution ID cannot be empty")
	ErrRuleIDRequired      = errors.New("rule ID cannot be empty")
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

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidWorkflowType) ||
		errors.Is(err, ErrCustomerIDRequired) ||
		errors.Is(err, ErrOperatorIDRequired) ||
		errors.Is(err, ErrExecutionIDRequired) ||
		errors.Is(err, ErrRuleIDRequired) ||
		errors.Is(err, lifecycle.ErrSkipReasonRequired) ||
		errors.Is(err, lifecycle.ErrRejectReasonRequired) ||
		errors.Is(err, lifecycle.ErrEscalateTargetRequired) ||
		errors.Is(err, models.ErrSnoozeNoTriggers) ||
		errors.Is(err, models.ErrTriggerInvalidType) ||
		errors.Is(err, models.ErrTriggerMissingWakeAt) ||
		errors.Is(err, models.ErrTriggerMissingCondition) ||
		errors.Is(err, models.ErrTriggerInvalidCondition) ||
		errors.Is(err, models.ErrTriggerInvalidLogic) ||
		errors.Is(err, models.ErrRuleNoConditions) ||
		errors.Is(err, models.ErrRuleTooManyConditions) ||
		errors.Is(err, models.ErrRuleMissingCombinator) ||
		errors.Is(err, models.ErrRuleInvalidCombinator) ||
		errors.Is(err, models.ErrRuleInvalidCondition) ||
		errors.Is(err, models.ErrRuleInvalidCron) ||
		errors.Is(err, models.ErrRuleTargetTypeRequired) ||
		errors.Is(err, models.ErrUnknownStepKind) ||
		errors.Is(err, events.ErrInvalidEventData)
}

// IsConflictError checks if an error is a state conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, lifecycle.ErrInvalidTransition) ||
		errors.Is(err, lifecycle.ErrReviewNotPending) ||
		errors.Is(err, lifecycle.ErrReviewAlreadyOpen) ||
		errors.Is(err, persistence.ErrConflict) ||
		errors.Is(err, persistence.ErrExecutionAlreadyExists)
}

// IsNotFoundError checks if an error indicates a missing record (HTTP 404).
func IsNotFoundError(err error) bool {
	return persistence.IsExecutionNotFound(err) ||
		persistence.IsRuleNotFound(err) ||
		persistence.IsCustomerNotFound(err) ||
		errors.Is(err, persistence.ErrScheduleNotFound)
}
