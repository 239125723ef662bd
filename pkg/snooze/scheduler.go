// Package snooze implements workflow suspension and re-activation: a snoozed
// execution sleeps until the first of its wake triggers fires, then returns
// to the ranked pool.
package snooze

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cadencehq/cadence/pkg/conditions"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// WakeError reports one execution whose wake check failed mid-batch. The
// batch continues: one bad snooze check never blocks the rest.
type WakeError struct {
	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
}

// WakeResult summarizes one wake-evaluation pass.
type WakeResult struct {
	Checked int         `json:"checked"`
	Woken   []string    `json:"woken"` // Execution IDs returned to the pool
	Errors  []WakeError `json:"errors,omitempty"`
}

// Scheduler suspends and wakes workflow executions.
type Scheduler struct {
	persistence persistence.Persistence
	machine     *lifecycle.Machine
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduler creates a snooze/wake scheduler.
func NewScheduler(persistence persistence.Persistence, machine *lifecycle.Machine, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		persistence: persistence,
		machine:     machine,
		logger:      logger.With("module", "snooze"),
		now:         time.Now,
	}
}

// WithClock overrides the scheduler's clock. Test hook.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now

	return s
}

// SnoozeWithTriggers suspends the execution until one of the triggers fires.
// The whole trigger set is validated before any state mutation; a bad
// trigger rejects the request with nothing written.
func (s *Scheduler) SnoozeWithTriggers(ctx context.Context, executionID string, triggers []models.WakeTrigger, actorID string) (*models.WorkflowExecution, error) {
	execution, err := s.machine.Snooze(ctx, executionID, triggers, actorID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Execution snoozed",
		"execution_id", executionID,
		"actor_id", actorID,
		"triggers", len(triggers),
		"snoozed_until", execution.SnoozedUntil)

	return execution, nil
}

// EvaluateWakeConditions scans all snoozed executions and wakes each one
// whose trigger set has at least one satisfied trigger, logical OR across
// the set. Called with a nil event on the periodic tick (date triggers
// only) and with the event on every incoming business event (both kinds).
//
// The pass is idempotent: waking is a status-guarded transition, so an
// overlapping pass that already woke an execution surfaces here as a
// conflict and is counted as already woken, not an error.
func (s *Scheduler) EvaluateWakeConditions(ctx context.Context, event *events.BusinessEvent) (*WakeResult, error) {
	snoozed, err := s.persistence.Executions().ListByStatus(ctx, models.ExecutionStatusSnoozed)
	if err != nil {
		return nil, fmt.Errorf("failed to list snoozed executions: %w", err)
	}

	now := s.now().UTC()
	result := &WakeResult{}

	for _, execution := range snoozed {
		result.Checked++

		source, fired := s.firedTrigger(ctx, execution, event, now)
		if !fired {
			continue
		}

		_, err := s.machine.Wake(ctx, execution.ID)
		if err != nil {
			if persistence.IsConflict(err) {
				// A concurrent pass got there first; the execution is awake.
				continue
			}

			result.Errors = append(result.Errors, WakeError{
				ExecutionID: execution.ID,
				Error:       err.Error(),
			})

			continue
		}

		result.Woken = append(result.Woken, execution.ID)

		s.logger.InfoContext(ctx, "Execution woken",
			"execution_id", execution.ID, "wake_source", source)
	}

	return result, nil
}

// firedTrigger reports whether any trigger in the execution's active set is
// satisfied, and which kind fired first.
func (s *Scheduler) firedTrigger(ctx context.Context, execution *models.WorkflowExecution, event *events.BusinessEvent, now time.Time) (string, bool) {
	var snapshot map[string]any

	for i := range execution.ActiveTriggers {
		trigger := execution.ActiveTriggers[i]

		switch trigger.Type {
		case models.WakeTriggerDate:
			if trigger.WakeAt != nil && !now.Before(*trigger.WakeAt) {
				return "date", true
			}
		case models.WakeTriggerEvent:
			if event == nil {
				continue
			}

			if snapshot == nil {
				snapshot = s.buildSnapshot(ctx, execution, event, now)
			}

			if conditions.EvaluateSet(trigger.Conditions, trigger.LogicOperator, snapshot) {
				return "event", true
			}
		}
	}

	return "", false
}

// buildSnapshot merges the event payload with the snoozed execution's
// customer context so event triggers can reference either.
func (s *Scheduler) buildSnapshot(ctx context.Context, execution *models.WorkflowExecution, event *events.BusinessEvent, now time.Time) map[string]any {
	snapshot := event.Snapshot()

	if execution.CustomerID == "" {
		return snapshot
	}

	customer, err := s.persistence.Customers().GetByID(ctx, execution.CustomerID)
	if err != nil {
		s.logger.WarnContext(ctx, "Customer lookup failed during wake evaluation",
			"execution_id", execution.ID, "customer_id", execution.CustomerID, "error", err)

		return snapshot
	}

	for key, value := range customer.Snapshot(now) {
		if _, present := snapshot[key]; !present {
			snapshot[key] = value
		}
	}

	return snapshot
}
