package rules_test

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

func setupEngine(t *testing.T) (*rules.Engine, *file.Persistence) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	return rules.NewEngine(persistence, slog.Default()), persistence
}

func seedCustomer(t *testing.T, persistence *file.Persistence, id string, healthScore float64) {
	t.Helper()

	now := time.Now().UTC()
	err := persistence.Customers().Save(t.Context(), &models.Customer{
		ID:          id,
		Name:        "Globex",
		ARR:         180000,
		HealthScore: healthScore,
		RiskLevel:   models.RiskLevelMedium,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	require.NoError(t, err)
}

func seedRule(t *testing.T, persistence *file.Persistence, rule *models.AutomationRule) {
	t.Helper()

	now := time.Now().UTC()
	if rule.ID == "" {
		rule.ID = "rule-" + rule.Name
	}

	rule.CreatedAt = now
	rule.UpdatedAt = now

	require.NoError(t, persistence.Rules().Save(t.Context(), rule))
}

func lowHealthRule(owner string) *models.AutomationRule {
	return &models.AutomationRule{
		ID:                 "rule-low-health",
		Name:               "Low health opens risk workflow",
		OwnerID:            owner,
		TargetWorkflowType: models.WorkflowTypeRisk,
		Conditions: []models.EventCondition{
			{Field: "health_score", Operator: models.OperatorLessThan, Value: 50},
		},
		IsActive: true,
	}
}

func TestEngine_EvaluateRule_Combinators(t *testing.T) {
	engine, _ := setupEngine(t)

	rule := &models.AutomationRule{
		ID:                 "rule-1",
		Name:               "risk and renewal",
		OwnerID:            "op-1",
		TargetWorkflowType: models.WorkflowTypeRisk,
		Conditions: []models.EventCondition{
			{Field: "health_score", Operator: models.OperatorLessThan, Value: 50},
			{Field: "arr", Operator: models.OperatorGreaterThan, Value: 100000},
		},
		LogicOperator: models.LogicAnd,
		IsActive:      true,
	}

	matched, err := engine.EvaluateRule(rule, map[string]any{"health_score": 45.0, "arr": 200000.0})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = engine.EvaluateRule(rule, map[string]any{"health_score": 45.0, "arr": 50000.0})
	require.NoError(t, err)
	assert.False(t, matched)

	rule.LogicOperator = models.LogicOr

	matched, err = engine.EvaluateRule(rule, map[string]any{"health_score": 45.0, "arr": 50000.0})
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEngine_EvaluateAllActiveRules_Launches(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedCustomer(t, persistence, "cust-1", 42)
	seedRule(t, persistence, lowHealthRule("op-1"))

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-1", map[string]any{
		"health_score": 42,
	})

	result, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Evaluated)
	require.Len(t, result.Launched, 1)
	assert.Empty(t, result.Errors)

	execution, err := persistence.Executions().GetByID(t.Context(), result.Launched[0])
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowTypeRisk, execution.Type)
	assert.Equal(t, "cust-1", execution.CustomerID)
	assert.Equal(t, "op-1", execution.AssignedUserID)
	assert.Equal(t, models.ExecutionStatusNotStarted, execution.Status)
	assert.Equal(t, "rule-low-health", execution.AutomationRuleID)
	assert.NotEmpty(t, execution.LaunchKey)
}

func TestEngine_EvaluateAllActiveRules_AssigneeOverride(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedCustomer(t, persistence, "cust-1", 42)

	rule := lowHealthRule("op-1")
	rule.AssignToUserID = "op-2"
	seedRule(t, persistence, rule)

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-1", nil)

	result, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)
	require.Len(t, result.Launched, 1)

	execution, err := persistence.Executions().GetByID(t.Context(), result.Launched[0])
	require.NoError(t, err)
	assert.Equal(t, "op-2", execution.AssignedUserID)
}

func TestEngine_EvaluateAllActiveRules_LaunchIdempotency(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedCustomer(t, persistence, "cust-1", 42)
	seedRule(t, persistence, lowHealthRule("op-1"))

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-1", nil)
	event.ID = "evt-1"

	first, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)
	require.Len(t, first.Launched, 1)

	// Redelivery of the same occurrence launches nothing.
	second, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)
	assert.Empty(t, second.Launched)
	require.Len(t, second.Runs, 1)
	assert.Equal(t, rules.OutcomeDuplicate, second.Runs[0].Outcome)
}

func TestEngine_EvaluateAllActiveRules_FailureIsolation(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedCustomer(t, persistence, "cust-1", 42)

	broken := &models.AutomationRule{
		ID:                 "rule-broken",
		Name:               "broken rule",
		OwnerID:            "op-1",
		TargetWorkflowType: models.WorkflowTypeRisk,
		Conditions: []models.EventCondition{
			{Field: "health_score", Operator: "between", Value: 50},
		},
		IsActive: true,
	}
	seedRule(t, persistence, broken)
	seedRule(t, persistence, lowHealthRule("op-1"))

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-1", nil)

	result, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Evaluated)
	assert.Len(t, result.Launched, 1)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "rule-broken", result.Errors[0].RuleID)
}

func TestEngine_EvaluateAllActiveRules_MissingCustomerEvaluatesEventOnly(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedRule(t, persistence, lowHealthRule("op-1"))

	event := events.NewBusinessEvent(events.EventHealthScoreChanged, "cust-unknown", map[string]any{
		"health_score": 42,
	})

	result, err := engine.EvaluateAllActiveRules(t.Context(), event)
	require.NoError(t, err)
	assert.Len(t, result.Launched, 1)
}

func TestEngine_EvaluateScheduledRule(t *testing.T) {
	engine, persistence := setupEngine(t)
	seedCustomer(t, persistence, "cust-low", 30)
	seedCustomer(t, persistence, "cust-high", 80)

	result, err := engine.EvaluateScheduledRule(t.Context(), lowHealthRule("op-1"))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Evaluated)
	require.Len(t, result.Launched, 1)

	execution, err := persistence.Executions().GetByID(t.Context(), result.Launched[0])
	require.NoError(t, err)
	assert.Equal(t, "cust-low", execution.CustomerID)

	// A second pass the same day is a no-op.
	again, err := engine.EvaluateScheduledRule(t.Context(), lowHealthRule("op-1"))
	require.NoError(t, err)
	assert.Empty(t, again.Launched)
}

func TestLaunchKey_IncludesEvaluationDay(t *testing.T) {
	event := events.NewBusinessEvent(events.EventUsageDrop, "cust-1", nil)

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	assert.NotEqual(t, rules.LaunchKey(event, day1), rules.LaunchKey(event, day2))
	assert.Equal(t, rules.LaunchKey(event, day1), rules.LaunchKey(event, day1))
}
