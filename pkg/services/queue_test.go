package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueService(t *testing.T) (*Queue, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	builder := queue.NewBuilder(persistence, queue.DefaultConfig(), logger)

	return NewQueue(builder, logger), persistence
}

func saveExecution(t *testing.T, persistence *file.Persistence, execution *models.WorkflowExecution) {
	t.Helper()

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now
	require.NoError(t, persistence.Executions().Save(t.Context(), execution))
}

func TestQueue_BuildQueue(t *testing.T) {
	service, persistence := newQueueService(t)
	seedCustomer(t, persistence, "cust-1")

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID:             "exec-1",
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
		Status:         models.ExecutionStatusNotStarted,
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID:             "exec-2",
		Type:           models.WorkflowTypeRenewal,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
		Status:         models.ExecutionStatusNotStarted,
	})

	response, err := service.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, response.Queue, 2)
	assert.Equal(t, 2, response.Stats.Total)
	require.Len(t, response.Groups, 1)
	assert.Equal(t, "cust-1", response.Groups[0].CustomerID)

	// Risk outweighs renewal on type weight alone.
	assert.Equal(t, "exec-1", response.Queue[0].Execution.ID)
	assert.GreaterOrEqual(t, response.Queue[0].Execution.PriorityScore, response.Queue[1].Execution.PriorityScore)
}

func TestQueue_BuildQueue_MissingCustomerExcluded(t *testing.T) {
	service, persistence := newQueueService(t)
	seedCustomer(t, persistence, "cust-1")

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID:             "exec-known",
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "cust-1",
		AssignedUserID: "op-1",
		Status:         models.ExecutionStatusNotStarted,
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID:             "exec-orphan",
		Type:           models.WorkflowTypeRisk,
		CustomerID:     "ghost",
		AssignedUserID: "op-1",
		Status:         models.ExecutionStatusNotStarted,
	})

	response, err := service.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, response.Queue, 1)
	assert.Equal(t, "exec-known", response.Queue[0].Execution.ID)

	require.Len(t, response.Skipped, 1)
	assert.Equal(t, "exec-orphan", response.Skipped[0].ExecutionID)
	assert.Equal(t, "ghost", response.Skipped[0].CustomerID)
}

func TestQueue_BuildQueue_RequiresOperator(t *testing.T) {
	service, _ := newQueueService(t)

	_, err := service.BuildQueue(t.Context(), "  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOperatorIDRequired)
}
