package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/google/uuid"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution is the application service for workflow executions. It wraps the
// lifecycle state machine with request validation and lifecycle event
// publishing. The publisher may be nil; transitions then happen silently.
type Execution struct {
	persistence persistence.Persistence
	machine     *lifecycle.Machine
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewExecution creates a new execution service.
func NewExecution(
	persistence persistence.Persistence,
	machine *lifecycle.Machine,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		persistence: persistence,
		machine:     machine,
		publisher:   publisher,
		logger:      logger.With("module", "execution-service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Execution) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateExecutionRequest carries the fields needed to create an execution.
type CreateExecutionRequest struct {
	Type           models.WorkflowType `validate:"required"`
	CustomerID     string              `validate:"required"`
	AssignedUserID string              `validate:"required"`
	WorkflowData   map[string]any
}

// Create validates the request and persists a new execution in not_started.
func (s *Execution) Create(ctx context.Context, req CreateExecutionRequest) (*models.WorkflowExecution, error) {
	if !req.Type.IsValid() {
		return nil, NewValidationError("Create", "INVALID_WORKFLOW_TYPE",
			fmt.Sprintf("invalid workflow type %q", req.Type), ErrInvalidWorkflowType)
	}

	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, ErrCustomerIDRequired
	}

	if strings.TrimSpace(req.AssignedUserID) == "" {
		return nil, ErrOperatorIDRequired
	}

	if _, err := s.persistence.Customers().GetByID(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	execution := &models.WorkflowExecution{
		ID:             uuid.New().String(),
		Type:           req.Type,
		CustomerID:     req.CustomerID,
		AssignedUserID: req.AssignedUserID,
		Status:         models.ExecutionStatusNotStarted,
		WorkflowData:   req.WorkflowData,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.persistence.Executions().Save(ctx, execution)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	s.publish(ctx, execution, events.ExecutionCreated{
		BaseEvent:    s.base(events.ExecutionCreatedEvent, execution, ""),
		WorkflowType: execution.Type,
		AssignedTo:   execution.AssignedUserID,
	})

	return execution, nil
}

// FetchByID retrieves an execution by its ID.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrExecutionIDRequired
	}

	return s.persistence.Executions().GetByID(ctx, id)
}

// ListByAssignee returns all executions assigned to the given operator.
func (s *Execution) ListByAssignee(ctx context.Context, assigneeID string) ([]*models.WorkflowExecution, error) {
	if strings.TrimSpace(assigneeID) == "" {
		return nil, ErrOperatorIDRequired
	}

	return s.persistence.Executions().ListByAssignee(ctx, assigneeID)
}

// Start moves an execution from not_started to underway.
func (s *Execution) Start(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Start(ctx, executionID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution, events.ExecutionStarted{
		BaseEvent: s.base(events.ExecutionStartedEvent, execution, ""),
		StartedAt: *execution.StartedAt,
	})

	return execution, nil
}

// Complete moves an underway execution to completed.
func (s *Execution) Complete(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Complete(ctx, executionID)
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	if execution.StartedAt != nil && execution.CompletedAt != nil {
		duration = execution.CompletedAt.Sub(*execution.StartedAt)
	}

	s.publish(ctx, execution, events.ExecutionCompleted{
		BaseEvent:   s.base(events.ExecutionCompletedEvent, execution, ""),
		CompletedAt: *execution.CompletedAt,
		Duration:    duration,
	})

	return execution, nil
}

// Skip marks a non-terminal execution as skipped. A reason is required.
func (s *Execution) Skip(ctx context.Context, executionID, reason string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Skip(ctx, executionID, reason)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution, events.ExecutionSkipped{
		BaseEvent: s.base(events.ExecutionSkippedEvent, execution, ""),
		Reason:    reason,
	})

	return execution, nil
}

// Escalate adds a secondary responsible party without reassigning.
func (s *Execution) Escalate(ctx context.Context, executionID, targetUserID, actorID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Escalate(ctx, executionID, targetUserID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution, events.ExecutionEscalated{
		BaseEvent:        s.base(events.ExecutionEscalatedEvent, execution, actorID),
		EscalationUserID: targetUserID,
	})

	return execution, nil
}

// OpenReview opens the review sub-state on an execution.
func (s *Execution) OpenReview(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return s.machine.OpenReview(ctx, executionID)
}

// Reject records a review rejection. The execution status is untouched; only
// the review sub-state and its append-only history change.
func (s *Execution) Reject(ctx context.Context, executionID, reason, notes, actorID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Reject(ctx, executionID, reason, notes, actorID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution, events.ReviewRejected{
		BaseEvent: s.base(events.ReviewRejectedEvent, execution, actorID),
		Iteration: execution.ReviewIteration,
		Reason:    reason,
	})

	return execution, nil
}

// Approve approves a pending review.
func (s *Execution) Approve(ctx context.Context, executionID, actorID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Approve(ctx, executionID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution, events.ReviewApproved{
		BaseEvent: s.base(events.ReviewApprovedEvent, execution, actorID),
		Iteration: execution.ReviewIteration,
	})

	return execution, nil
}

// AppendStepResult validates a step-result payload and appends it to the
// execution's workflow data under optimistic concurrency control.
func (s *Execution) AppendStepResult(ctx context.Context, executionID string, payload map[string]any) (*models.WorkflowExecution, error) {
	execution, err := s.FetchByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	observedStatus := execution.Status
	observedUpdatedAt := execution.UpdatedAt

	if err := execution.AppendStepResult(payload, now); err != nil {
		return nil, NewValidationError("AppendStepResult", "INVALID_STEP_RESULT", err.Error(), ErrInvalidRequest)
	}

	execution.UpdatedAt = now

	err = s.persistence.Executions().UpdateGuarded(ctx, execution, observedStatus, observedUpdatedAt)
	if err != nil {
		return nil, err
	}

	return execution, nil
}

func (s *Execution) base(eventType events.EventType, execution *models.WorkflowExecution, actorID string) events.BaseEvent {
	return events.BaseEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		ExecutionID: execution.ID,
		CustomerID:  execution.CustomerID,
		ActorID:     actorID,
	}
}

func (s *Execution) publish(ctx context.Context, execution *models.WorkflowExecution, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, execution.ID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish lifecycle event",
			"error", err, "event_type", event.GetType(), "execution_id", execution.ID)
	}
}
