package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence/file"
	"github.com/cadencehq/cadence/pkg/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuleService(t *testing.T) (*Rule, *file.Persistence) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())
	engine := rules.NewEngine(persistence, logger)

	return NewRule(persistence, engine, logger), persistence
}

func validRule() *models.AutomationRule {
	return &models.AutomationRule{
		Name:               "Health drop watch",
		OwnerID:            "op-1",
		TargetWorkflowType: models.WorkflowTypeRisk,
		Conditions: []models.EventCondition{
			{Field: "health_score", Operator: models.OperatorLessThan, Value: 50},
		},
		IsActive: true,
	}
}

func TestRule_Create(t *testing.T) {
	service, _ := newRuleService(t)

	created, err := service.Create(t.Context(), validRule())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestRule_Create_Validation(t *testing.T) {
	service, _ := newRuleService(t)

	rule := validRule()
	rule.Conditions = nil

	_, err := service.Create(t.Context(), rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRuleNoConditions)
	assert.True(t, IsValidationError(err))

	rule = validRule()
	rule.Conditions = append(rule.Conditions, models.EventCondition{
		Field:    "arr",
		Operator: models.OperatorGreaterThan,
		Value:    100000,
	})

	_, err = service.Create(t.Context(), rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRuleMissingCombinator)
}

func TestRule_Create_InvalidCronLeavesNothingBehind(t *testing.T) {
	service, persistence := newRuleService(t)

	rule := validRule()
	rule.CronExpression = "not a cron"

	_, err := service.Create(t.Context(), rule)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRuleInvalidCron)
	assert.True(t, IsValidationError(err))

	stored, err := persistence.Rules().ListByOwner(t.Context(), "op-1", false)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestRule_Update_InvalidCronLeavesRuleUntouched(t *testing.T) {
	service, _ := newRuleService(t)

	created, err := service.Create(t.Context(), validRule())
	require.NoError(t, err)

	updated := validRule()
	updated.Name = "Renamed watch"
	updated.CronExpression = "99 99 * * *"

	_, err = service.Update(t.Context(), created.ID, updated)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRuleInvalidCron)

	stored, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Health drop watch", stored.Name)
	assert.Empty(t, stored.CronExpression)
}

func TestRule_Create_WithSchedule(t *testing.T) {
	service, persistence := newRuleService(t)

	rule := validRule()
	rule.CronExpression = "0 8 * * *"

	created, err := service.Create(t.Context(), rule)
	require.NoError(t, err)

	schedule, err := persistence.Schedules().GetByRuleID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.True(t, schedule.Active)
	assert.False(t, schedule.NextDueAt.IsZero())
}

func TestRule_Update_DropsScheduleWhenCronRemoved(t *testing.T) {
	service, persistence := newRuleService(t)

	rule := validRule()
	rule.CronExpression = "0 8 * * *"

	created, err := service.Create(t.Context(), rule)
	require.NoError(t, err)

	updated := validRule()
	updated.CronExpression = ""

	_, err = service.Update(t.Context(), created.ID, updated)
	require.NoError(t, err)

	_, err = persistence.Schedules().GetByRuleID(t.Context(), created.ID)
	require.Error(t, err)
}

func TestRule_Delete(t *testing.T) {
	service, _ := newRuleService(t)

	created, err := service.Create(t.Context(), validRule())
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestRule_EvaluateEvent_LaunchesExecution(t *testing.T) {
	service, persistence := newRuleService(t)

	now := time.Now().UTC()
	require.NoError(t, persistence.Customers().Save(t.Context(), &models.Customer{
		ID:          "cust-1",
		Name:        "Acme Corp",
		ARR:         400000,
		HealthScore: 42,
		RiskLevel:   models.RiskLevelHigh,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	_, err := service.Create(t.Context(), validRule())
	require.NoError(t, err)

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-1", map[string]any{
		"health_score": 42,
	})

	result, err := service.EvaluateEvent(t.Context(), event)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Evaluated)
	assert.Len(t, result.Launched, 1)
	assert.Empty(t, result.Errors)
}
