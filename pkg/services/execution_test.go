package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/mocks"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newExecutionService(t *testing.T) (*Execution, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	machine := lifecycle.NewMachine(persistence.Executions(), logger)

	return NewExecution(persistence, machine, nil, logger), persistence
}

func seedCustomer(t *testing.T, persistence *file.Persistence, id string) {
	t.Helper()

	now := time.Now().UTC()
	err := persistence.Customers().Save(t.Context(), &models.Customer{
		ID:          id,
		Name:        "Acme Corp",
		ARR:         250000,
		HealthScore: 62,
		RiskLevel:   models.RiskLevelMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
}

func TestExecution_Create(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.ExecutionStatusNotStarted, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
}

func TestExecution_Create_Validation(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	tests := []struct {
		name    string
		req     CreateExecutionRequest
		wantErr error
	}{
		{
			name: "unknown_type",
			req: CreateExecutionRequest{
				Type:           "onboarding",
				CustomerID:     "cust-1",
				AssignedUserID: "op-1",
			},
			wantErr: ErrInvalidWorkflowType,
		},
		{
			name: "missing_customer_id",
			req: CreateExecutionRequest{
				Type:           models.WorkflowTypeRisk,
				AssignedUserID: "op-1",
			},
			wantErr: ErrCustomerIDRequired,
		},
		{
			name: "missing_assignee",
			req: CreateExecutionRequest{
				Type:       models.WorkflowTypeRisk,
				CustomerID: "cust-1",
			},
			wantErr: ErrOperatorIDRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(t.Context(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestExecution_Create_UnknownCustomer(t *testing.T) {
	service, _ := newExecutionService(t)

	_, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRenewal,
		CustomerID:     "ghost",
		AssignedUserID: "op-1",
	})
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestExecution_LifecycleFlow(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRenewal,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	started, err := service.Start(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusUnderway, started.Status)
	require.NotNil(t, started.StartedAt)

	completed, err := service.Complete(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	// Terminal state rejects further transitions.
	_, err = service.Start(t.Context(), created.ID)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestExecution_Skip_RequiresReason(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeStrategic,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	_, err = service.Skip(t.Context(), created.ID, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrSkipReasonRequired)
	assert.True(t, IsValidationError(err))

	skipped, err := service.Skip(t.Context(), created.ID, "customer churned")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSkipped, skipped.Status)
	assert.Equal(t, "customer churned", skipped.SkipReason)
}

func TestExecution_Escalate_KeepsAssignee(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	escalated, err := service.Escalate(t.Context(), created.ID, "manager-1", "op-1")
	require.NoError(t, err)

	assert.Equal(t, "manager-1", escalated.EscalationUserID)
	assert.Equal(t, "op-1", escalated.AssignedUserID)
}

func TestExecution_ReviewFlow(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeOpportunity,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	opened, err := service.OpenReview(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, opened.ReviewStatus)
	assert.Equal(t, 1, opened.ReviewIteration)

	rejected, err := service.Reject(t.Context(), created.ID, "missing context", "add customer notes", "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPending, rejected.ReviewStatus)
	assert.Equal(t, 2, rejected.ReviewIteration)
	require.Len(t, rejected.RejectionHistory, 1)
	assert.Equal(t, "missing context", rejected.RejectionHistory[0].Reason)

	// The review stays pending after a reject, so approval follows directly.
	approved, err := service.Approve(t.Context(), created.ID, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusApproved, approved.ReviewStatus)

	// Nothing left pending to approve.
	_, err = service.Approve(t.Context(), created.ID, "reviewer-1")
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestExecution_PublishesLifecycleEvents(t *testing.T) {
	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	machine := lifecycle.NewMachine(persistence.Executions(), logger)

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := NewExecution(persistence, machine, bus, logger)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	_, err = service.Start(t.Context(), created.ID)
	require.NoError(t, err)

	_, err = service.Complete(t.Context(), created.ID)
	require.NoError(t, err)

	bus.AssertNumberOfCalls(t, "Publish", 3)

	published := make([]events.EventType, 0, len(bus.Calls))
	for _, call := range bus.Calls {
		event, ok := call.Arguments.Get(2).(eventbus.Event)
		require.True(t, ok)
		published = append(published, event.GetType())
	}

	assert.Equal(t, []events.EventType{
		events.ExecutionCreatedEvent,
		events.ExecutionStartedEvent,
		events.ExecutionCompletedEvent,
	}, published)
}

func TestExecution_PublishFailureDoesNotBlockTransition(t *testing.T) {
	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	machine := lifecycle.NewMachine(persistence.Executions(), logger)

	bus := new(mocks.MockEventBus)
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	service := NewExecution(persistence, machine, bus, logger)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRenewal,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusNotStarted, created.Status)
}

func TestExecution_AppendStepResult(t *testing.T) {
	service, persistence := newExecutionService(t)
	seedCustomer(t, persistence, "cust-1")

	created, err := service.Create(t.Context(), CreateExecutionRequest{
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
	})
	require.NoError(t, err)

	updated, err := service.AppendStepResult(t.Context(), created.ID, map[string]any{
		"kind":      "check_in",
		"sentiment": "positive",
		"summary":   "renewal call went well",
	})
	require.NoError(t, err)

	steps, malformed := updated.StepResults()
	assert.Len(t, steps, 1)
	assert.Zero(t, malformed)

	_, err = service.AppendStepResult(t.Context(), created.ID, map[string]any{
		"kind": "teleport",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
