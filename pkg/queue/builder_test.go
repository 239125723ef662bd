package queue_test

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

func setupBuilder(t *testing.T) (*queue.Builder, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	return queue.NewBuilder(persistence, queue.DefaultConfig(), slog.Default()), persistence
}

func saveCustomer(t *testing.T, persistence *file.Persistence, customer *models.Customer) {
	t.Helper()

	now := time.Now().UTC()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	require.NoError(t, persistence.Customers().Save(t.Context(), customer))
}

func saveExecution(t *testing.T, persistence *file.Persistence, execution *models.WorkflowExecution) {
	t.Helper()

	if execution.AssignedUserID == "" {
		execution.AssignedUserID = "op-1"
	}

	if execution.Status == "" {
		execution.Status = models.ExecutionStatusNotStarted
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
		execution.UpdatedAt = execution.CreatedAt
	}

	require.NoError(t, persistence.Executions().Save(t.Context(), execution))
}

func TestBuilder_RiskOutranksCloseRenewal(t *testing.T) {
	builder, persistence := setupBuilder(t)

	renewalDate := time.Now().UTC().Add(14 * 24 * time.Hour)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-risk", Name: "Initech", ARR: 380000, HealthScore: 45,
		RiskLevel: models.RiskLevelHigh,
	})
	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-renewal", Name: "Hooli", ARR: 120000, HealthScore: 72,
		RiskLevel: models.RiskLevelLow, RenewalDate: &renewalDate,
	})

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-risk", Type: models.WorkflowTypeRisk, CustomerID: "cust-risk",
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-renewal", Type: models.WorkflowTypeRenewal, CustomerID: "cust-renewal",
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, result.Queue, 2)
	assert.Equal(t, "exec-risk", result.Queue[0].ID)
	assert.Equal(t, "exec-renewal", result.Queue[1].ID)
	assert.Greater(t, result.Queue[0].PriorityScore, result.Queue[1].PriorityScore)

	// The factor breakdown is persisted on the execution for display.
	require.NotNil(t, result.Queue[0].PriorityFactors)
	assert.InDelta(t, result.Queue[0].PriorityFactors.Total(), result.Queue[0].PriorityScore, 0.001)
}

func TestBuilder_WakeBumpOutranksNewSameTypeWork(t *testing.T) {
	builder, persistence := setupBuilder(t)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-1", Name: "Acme", ARR: 250000, HealthScore: 62,
		RiskLevel: models.RiskLevelMedium,
	})

	wokenAt := time.Now().UTC().Add(-time.Hour)
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-woken", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
		WokenAt: &wokenAt,
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-new", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, result.Queue, 2)
	assert.Equal(t, "exec-woken", result.Queue[0].ID)

	factors := result.Queue[0].PriorityFactors
	require.NotNil(t, factors)
	assert.Equal(t, 35.0, factors.WakeBump)
}

func TestBuilder_WakeBumpExpiresAfterWindow(t *testing.T) {
	builder, persistence := setupBuilder(t)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-1", Name: "Acme", ARR: 250000, HealthScore: 62,
		RiskLevel: models.RiskLevelMedium,
	})

	wokenAt := time.Now().UTC().Add(-96 * time.Hour)
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-stale-wake", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
		WokenAt: &wokenAt,
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, result.Queue, 1)
	assert.Equal(t, 0.0, result.Queue[0].PriorityFactors.WakeBump)
}

func TestBuilder_ExcludesTerminalAndSnoozed(t *testing.T) {
	builder, persistence := setupBuilder(t)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-1", Name: "Acme", ARR: 250000, HealthScore: 62,
	})

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-open", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-done", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
		Status: models.ExecutionStatusCompleted,
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-skipped", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
		Status: models.ExecutionStatusSkipped,
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-snoozed", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
		Status: models.ExecutionStatusSnoozed,
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, result.Queue, 1)
	assert.Equal(t, "exec-open", result.Queue[0].ID)
}

func TestBuilder_MissingCustomerExcludesNotFails(t *testing.T) {
	builder, persistence := setupBuilder(t)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-1", Name: "Acme", ARR: 250000, HealthScore: 62,
	})

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-ok", Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-orphan", Type: models.WorkflowTypeRisk, CustomerID: "cust-gone",
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, result.Queue, 1)
	assert.Equal(t, "exec-ok", result.Queue[0].ID)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "exec-orphan", result.Skipped[0].ExecutionID)
	assert.Equal(t, "cust-gone", result.Skipped[0].CustomerID)
	assert.NotEmpty(t, result.Skipped[0].Reason)
}

func TestBuilder_DeterministicOrdering(t *testing.T) {
	builder, persistence := setupBuilder(t)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-1", Name: "Acme", ARR: 250000, HealthScore: 62,
	})

	createdAt := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	// Identical scores; only the ID tiebreaker differs.
	for _, id := range []string{"exec-c", "exec-a", "exec-b"} {
		saveExecution(t, persistence, &models.WorkflowExecution{
			ID: id, Type: models.WorkflowTypeRisk, CustomerID: "cust-1",
			CreatedAt: createdAt, UpdatedAt: createdAt,
		})
	}

	first, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	second, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	require.Len(t, first.Queue, 3)
	assert.Equal(t, "exec-a", first.Queue[0].ID)
	assert.Equal(t, "exec-b", first.Queue[1].ID)
	assert.Equal(t, "exec-c", first.Queue[2].ID)

	for i := range first.Queue {
		assert.Equal(t, first.Queue[i].ID, second.Queue[i].ID)
	}
}

func TestBuilder_Stats(t *testing.T) {
	builder, persistence := setupBuilder(t)

	renewalDate := time.Now().UTC().Add(14 * 24 * time.Hour)

	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-risk", Name: "Initech", ARR: 380000, HealthScore: 45,
		RiskLevel: models.RiskLevelHigh,
	})
	saveCustomer(t, persistence, &models.Customer{
		ID: "cust-renewal", Name: "Hooli", ARR: 120000, HealthScore: 72,
		RiskLevel: models.RiskLevelLow, RenewalDate: &renewalDate,
	})

	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-risk", Type: models.WorkflowTypeRisk, CustomerID: "cust-risk",
	})
	saveExecution(t, persistence, &models.WorkflowExecution{
		ID: "exec-renewal", Type: models.WorkflowTypeRenewal, CustomerID: "cust-renewal",
		Status: models.ExecutionStatusUnderway,
	})

	result, err := builder.BuildQueue(t.Context(), "op-1")
	require.NoError(t, err)

	stats := result.Stats
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByType[models.WorkflowTypeRisk])
	assert.Equal(t, 1, stats.ByType[models.WorkflowTypeRenewal])
	assert.Equal(t, 1, stats.ByStatus[models.ExecutionStatusNotStarted])
	assert.Equal(t, 1, stats.ByStatus[models.ExecutionStatusUnderway])
	assert.Equal(t, result.Queue[0].PriorityScore, stats.MaxPriority)
	assert.Equal(t, result.Queue[1].PriorityScore, stats.MinPriority)
	assert.InDelta(t, (stats.MaxPriority+stats.MinPriority)/2, stats.AveragePriority, 0.001)
}

func TestBuilder_BandThresholds(t *testing.T) {
	builder, _ := setupBuilder(t)

	assert.Equal(t, queue.BandCritical, builder.Band(85))
	assert.Equal(t, queue.BandHigh, builder.Band(60))
	assert.Equal(t, queue.BandMedium, builder.Band(35))
	assert.Equal(t, queue.BandLow, builder.Band(10))
}

func TestGroupByCustomer(t *testing.T) {
	queueEntries := []*models.WorkflowExecution{
		{ID: "exec-1", CustomerID: "cust-a"},
		{ID: "exec-2", CustomerID: "cust-b"},
		{ID: "exec-3", CustomerID: "cust-a"},
	}

	groups := queue.GroupByCustomer(queueEntries)

	require.Len(t, groups, 2)
	assert.Equal(t, "cust-a", groups[0].CustomerID)
	require.Len(t, groups[0].Executions, 2)
	assert.Equal(t, "exec-1", groups[0].Executions[0].ID)
	assert.Equal(t, "exec-3", groups[0].Executions[1].ID)
	assert.Equal(t, "cust-b", groups[1].CustomerID)
}
