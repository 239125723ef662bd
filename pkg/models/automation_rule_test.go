package models_test

import (
	"testing"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseRule() *models.AutomationRule {
	return &models.AutomationRule{
		ID:                 "rule-1",
		Name:               "Low health opens risk workflow",
		OwnerID:            "op-1",
		TargetWorkflowType: models.WorkflowTypeRisk,
		Conditions: []models.EventCondition{
			{Field: "health_score", Operator: models.OperatorLessThan, Value: 50},
		},
		IsActive: true,
	}
}

func TestAutomationRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.AutomationRule)
		wantErr error
	}{
		{
			name:   "valid single condition",
			mutate: func(r *models.AutomationRule) {},
		},
		{
			name: "valid two conditions with combinator",
			mutate: func(r *models.AutomationRule) {
				r.Conditions = append(r.Conditions, models.EventCondition{
					Field: "arr", Operator: models.OperatorGreaterThan, Value: 100000,
				})
				r.LogicOperator = models.LogicOr
			},
		},
		{
			name: "valid cron expression",
			mutate: func(r *models.AutomationRule) {
				r.CronExpression = "0 8 * * *"
			},
		},
		{
			name: "invalid cron expression",
			mutate: func(r *models.AutomationRule) {
				r.CronExpression = "not a cron"
			},
			wantErr: models.ErrRuleInvalidCron,
		},
		{
			name: "unknown target type",
			mutate: func(r *models.AutomationRule) {
				r.TargetWorkflowType = "onboarding"
			},
			wantErr: models.ErrRuleTargetTypeRequired,
		},
		{
			name: "no conditions",
			mutate: func(r *models.AutomationRule) {
				r.Conditions = nil
			},
			wantErr: models.ErrRuleNoConditions,
		},
		{
			name: "two conditions without combinator",
			mutate: func(r *models.AutomationRule) {
				r.Conditions = append(r.Conditions, models.EventCondition{
					Field: "arr", Operator: models.OperatorGreaterThan, Value: 100000,
				})
			},
			wantErr: models.ErrRuleMissingCombinator,
		},
		{
			name: "invalid combinator",
			mutate: func(r *models.AutomationRule) {
				r.Conditions = append(r.Conditions, models.EventCondition{
					Field: "arr", Operator: models.OperatorGreaterThan, Value: 100000,
				})
				r.LogicOperator = "XOR"
			},
			wantErr: models.ErrRuleInvalidCombinator,
		},
		{
			name: "three conditions",
			mutate: func(r *models.AutomationRule) {
				r.Conditions = append(r.Conditions,
					models.EventCondition{Field: "arr", Operator: models.OperatorGreaterThan, Value: 1},
					models.EventCondition{Field: "risk_level", Operator: models.OperatorEquals, Value: "high"},
				)
				r.LogicOperator = models.LogicAnd
			},
			wantErr: models.ErrRuleTooManyConditions,
		},
		{
			name: "condition missing field",
			mutate: func(r *models.AutomationRule) {
				r.Conditions[0].Field = ""
			},
			wantErr: models.ErrRuleInvalidCondition,
		},
		{
			name: "condition with unknown operator",
			mutate: func(r *models.AutomationRule) {
				r.Conditions[0].Operator = "between"
			},
			wantErr: models.ErrRuleInvalidCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := baseRule()
			tt.mutate(rule)

			err := rule.Validate()

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestComparisonOperator_IsValid(t *testing.T) {
	for _, op := range models.KnownOperators {
		assert.True(t, op.IsValid(), string(op))
	}

	assert.False(t, models.ComparisonOperator("between").IsValid())
	assert.False(t, models.ComparisonOperator("").IsValid())
}
