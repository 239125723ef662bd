package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/snooze"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnoozeService(t *testing.T) (*Snooze, *Execution, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	machine := lifecycle.NewMachine(persistence.Executions(), logger)
	scheduler := snooze.NewScheduler(persistence, machine, logger)

	return NewSnooze(scheduler, nil, logger),
		NewExecution(persistence, machine, nil, logger),
		persistence
}

func TestSnooze_AllOrNothingValidation(t *testing.T) {
	snoozeService, executionService, persistence := newSnoozeService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := executionService.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	// Empty trigger set is rejected outright.
	_, err = snoozeService.SnoozeExecution(t.Context(), created.ID, nil, "op-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSnoozeNoTriggers)

	// One bad trigger rejects the whole set without mutating the execution.
	wakeAt := time.Now().UTC().Add(48 * time.Hour)
	_, err = snoozeService.SnoozeExecution(t.Context(), created.ID, []models.WakeTrigger{
		{Type: models.WakeTriggerDate, WakeAt: &wakeAt},
		{Type: models.WakeTriggerEvent},
	}, "op-1")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	stored, err := persistence.Executions().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusNotStarted, stored.Status)
	assert.Empty(t, stored.ActiveTriggers)
}

func TestSnooze_DateWake(t *testing.T) {
	snoozeService, executionService, persistence := newSnoozeService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := executionService.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRenewal,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	wakeAt := time.Now().UTC().Add(-time.Minute) // already due
	snoozed, err := snoozeService.SnoozeExecution(t.Context(), created.ID, []models.WakeTrigger{
		{Type: models.WakeTriggerDate, WakeAt: &wakeAt},
	}, "op-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSnoozed, snoozed.Status)

	result, err := snoozeService.RunWakeSweep(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, []string{created.ID}, result.Woken)
	assert.Empty(t, result.Errors)

	woken, err := persistence.Executions().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusNotStarted, woken.Status)
	assert.Empty(t, woken.ActiveTriggers)
	assert.NotEmpty(t, woken.TriggerHistory)
	require.NotNil(t, woken.WokenAt)
}

func TestSnooze_EventWake(t *testing.T) {
	snoozeService, executionService, persistence := newSnoozeService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := executionService.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	_, err = snoozeService.SnoozeExecution(t.Context(), created.ID, []models.WakeTrigger{
		{
			Type: models.WakeTriggerEvent,
			Conditions: []models.EventCondition{
				{Field: "event_type", Operator: models.OperatorEquals, Value: events.EventContractSigned},
			},
		},
	}, "op-1")
	require.NoError(t, err)

	// A tick without the event leaves it asleep.
	result, err := snoozeService.RunWakeSweep(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Woken)

	event := events.NewBusinessEvent(events.EventContractSigned, "cust-1", nil)

	result, err = snoozeService.RunWakeSweep(t.Context(), event)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, result.Woken)
}

func TestSnooze_WakeIsIdempotent(t *testing.T) {
	snoozeService, executionService, persistence := newSnoozeService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := executionService.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeStrategic,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	wakeAt := time.Now().UTC().Add(-time.Minute)
	_, err = snoozeService.SnoozeExecution(t.Context(), created.ID, []models.WakeTrigger{
		{Type: models.WakeTriggerDate, WakeAt: &wakeAt},
	}, "op-1")
	require.NoError(t, err)

	first, err := snoozeService.RunWakeSweep(t.Context(), nil)
	require.NoError(t, err)
	assert.Len(t, first.Woken, 1)

	// Second sweep finds nothing snoozed; nothing double-wakes.
	second, err := snoozeService.RunWakeSweep(t.Context(), nil)
	require.NoError(t, err)
	assert.Zero(t, second.Checked)
	assert.Empty(t, second.Woken)
	assert.Empty(t, second.Errors)
}
