// Package lifecycle implements the workflow execution state machine: the
// authoritative set of states and transitions, including the skip, snooze,
// and review sub-flows. Every transition is a compare-and-swap on the
// previously observed (status, updated_at) pair, so a record already
// transitioned by a concurrent writer surfaces as a conflict instead of
// being silently overwritten.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// Transition validation errors.
var (
	ErrInvalidTransition      = errors.New("invalid transition for current status")
	ErrSkipReasonRequired     = errors.New("skip requires a non-empty reason")
	ErrRejectReasonRequired   = errors.New("reject requires a non-empty reason")
	ErrReviewNotPending       = errors.New("review is not pending")
	ErrReviewAlreadyOpen      = errors.New("review is already open")
	ErrEscalateTargetRequired = errors.New("escalation requires a target user")
)

// Machine drives workflow execution state transitions against the record store.
type Machine struct {
	executions persistence.ExecutionRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewMachine creates a lifecycle state machine over the given repository.
func NewMachine(executions persistence.ExecutionRepository, logger *slog.Logger) *Machine {
	return &Machine{
		executions: executions,
		logger:     logger.With("module", "lifecycle"),
		now:        time.Now,
	}
}

// WithClock overrides the machine's clock. Test hook.
func (m *Machine) WithClock(now func() time.Time) *Machine {
	m.now = now

	return m
}

// Start moves a not_started execution to underway and stamps started_at.
func (m *Machine) Start(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return m.transition(ctx, executionID, models.ExecutionStatusNotStarted,
		func(execution *models.WorkflowExecution, now time.Time) error {
			execution.Status = models.ExecutionStatusUnderway
			execution.StartedAt = &now

			return nil
		})
}

// Complete moves an underway execution to completed and stamps completed_at.
// Completed executions are immutable.
func (m *Machine) Complete(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return m.transition(ctx, executionID, models.ExecutionStatusUnderway,
		func(execution *models.WorkflowExecution, now time.Time) error {
			execution.Status = models.ExecutionStatusCompleted
			execution.CompletedAt = &now

			return nil
		})
}

// Skip moves any non-terminal execution to skipped. The reason is required.
// Skipped records are immutable: reversal happens only by explicit
// re-creation, never by mutating the skipped record.
func (m *Machine) Skip(ctx context.Context, executionID, reason string) (*models.WorkflowExecution, error) {
	if reason == "" {
		return nil, ErrSkipReasonRequired
	}

	return m.transitionNonTerminal(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			execution.Status = models.ExecutionStatusSkipped
			execution.SkipReason = reason
			execution.SkippedAt = &now

			return nil
		})
}

// Snooze suspends any non-terminal execution until one of the given triggers
// fires. The trigger set is validated before any mutation, all-or-nothing.
func (m *Machine) Snooze(ctx context.Context, executionID string, triggers []models.WakeTrigger, actorID string) (*models.WorkflowExecution, error) {
	if err := models.ValidateTriggerSet(triggers); err != nil {
		return nil, err
	}

	return m.transitionNonTerminal(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			if execution.Status == models.ExecutionStatusSnoozed {
				return fmt.Errorf("%w: already snoozed", ErrInvalidTransition)
			}

			execution.Status = models.ExecutionStatusSnoozed
			execution.ActiveTriggers = triggers
			execution.SnoozedUntil = models.EarliestWakeAt(triggers)
			execution.SnoozedBy = actorID

			return nil
		})
}

// Wake returns a snoozed execution to not_started. The active trigger set is
// cleared into the trigger history; snoozed_until stays for audit. Running a
// wake pass twice against the same clock cannot double-wake: the second
// attempt fails the status guard and reports a conflict.
func (m *Machine) Wake(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return m.transition(ctx, executionID, models.ExecutionStatusSnoozed,
		func(execution *models.WorkflowExecution, now time.Time) error {
			execution.Status = models.ExecutionStatusNotStarted
			execution.TriggerHistory = append(execution.TriggerHistory, execution.ActiveTriggers...)
			execution.ActiveTriggers = nil
			execution.WokenAt = &now

			return nil
		})
}

// Escalate records a secondary responsible party on the execution. The
// original assignee keeps the work: escalation is not reassignment.
func (m *Machine) Escalate(ctx context.Context, executionID, targetUserID string) (*models.WorkflowExecution, error) {
	if targetUserID == "" {
		return nil, ErrEscalateTargetRequired
	}

	return m.transitionNonTerminal(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			execution.EscalationUserID = targetUserID

			return nil
		})
}

// OpenReview puts the execution's review sub-state at pending, starting at
// iteration 1 on first open. The workflow status itself does not change.
func (m *Machine) OpenReview(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return m.transitionNonTerminal(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			if execution.ReviewStatus == models.ReviewStatusPending {
				return ErrReviewAlreadyOpen
			}

			execution.ReviewStatus = models.ReviewStatusPending

			// Re-opening a closed review keeps the iteration counter:
			// it only ever moves forward.
			if execution.ReviewIteration == 0 {
				execution.ReviewIteration = 1
			}

			return nil
		})
}

// Reject sends pending review output back for rework: the iteration counter
// increases and an entry is appended to the ordered rejection history. The
// review stays pending, so rejects can follow each other without reopening.
// Only review fields change; the workflow status is untouched. The iteration
// count strictly increases and never resets except by re-creating the
// execution.
func (m *Machine) Reject(ctx context.Context, executionID, reason, notes, actorID string) (*models.WorkflowExecution, error) {
	if reason == "" {
		return nil, ErrRejectReasonRequired
	}

	return m.transitionAny(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			if execution.ReviewStatus != models.ReviewStatusPending {
				return ErrReviewNotPending
			}

			execution.ReviewIteration++
			execution.RejectionHistory = append(execution.RejectionHistory, models.RejectionEntry{
				Iteration:  execution.ReviewIteration,
				Reason:     reason,
				Notes:      notes,
				RejectedBy: actorID,
				RejectedAt: now,
			})

			return nil
		})
}

// Approve accepts pending review output. Downstream consumers observe the
// approval by reading; nothing is pushed.
func (m *Machine) Approve(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	return m.transitionAny(ctx, executionID,
		func(execution *models.WorkflowExecution, now time.Time) error {
			if execution.ReviewStatus != models.ReviewStatusPending {
				return ErrReviewNotPending
			}

			execution.ReviewStatus = models.ReviewStatusApproved

			return nil
		})
}

type mutator func(execution *models.WorkflowExecution, now time.Time) error

// transition applies the mutation only when the execution currently holds
// the required status.
func (m *Machine) transition(ctx context.Context, executionID string, required models.ExecutionStatus, mutate mutator) (*models.WorkflowExecution, error) {
	return m.apply(ctx, executionID, func(execution *models.WorkflowExecution, now time.Time) error {
		if execution.Status != required {
			return fmt.Errorf("%w: %s", ErrInvalidTransition, execution.Status)
		}

		return mutate(execution, now)
	})
}

// transitionNonTerminal applies the mutation to any non-terminal execution.
func (m *Machine) transitionNonTerminal(ctx context.Context, executionID string, mutate mutator) (*models.WorkflowExecution, error) {
	return m.apply(ctx, executionID, func(execution *models.WorkflowExecution, now time.Time) error {
		if execution.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, execution.Status)
		}

		return mutate(execution, now)
	})
}

// transitionAny applies the mutation regardless of status; used for the
// review sub-state, which is parallel to the workflow status.
func (m *Machine) transitionAny(ctx context.Context, executionID string, mutate mutator) (*models.WorkflowExecution, error) {
	return m.apply(ctx, executionID, func(execution *models.WorkflowExecution, now time.Time) error {
		return mutate(execution, now)
	})
}

func (m *Machine) apply(ctx context.Context, executionID string, mutate mutator) (*models.WorkflowExecution, error) {
	execution, err := m.executions.GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	observedStatus := execution.Status
	observedUpdatedAt := execution.UpdatedAt
	now := m.now().UTC()

	if err := mutate(execution, now); err != nil {
		return nil, err
	}

	execution.UpdatedAt = now

	err = m.executions.UpdateGuarded(ctx, execution, observedStatus, observedUpdatedAt)
	if err != nil {
		if persistence.IsConflict(err) {
			m.logger.WarnContext(ctx, "Transition lost concurrency race",
				"execution_id", executionID, "observed_status", observedStatus)
		}

		return nil, err
	}

	return execution, nil
}
