package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/rules"
	"github.com/google/uuid"
)

// ErrRuleNotFound is returned when a rule is not found.
var ErrRuleNotFound = persistence.ErrRuleNotFound

// Rule is the application service for automation rules. Rules with a cron
// expression get a recurring evaluation schedule managed alongside them.
type Rule struct {
	persistence persistence.Persistence
	engine      *rules.Engine
	logger      *slog.Logger
}

// NewRule creates a new rule service.
func NewRule(persistence persistence.Persistence, engine *rules.Engine, logger *slog.Logger) *Rule {
	return &Rule{
		persistence: persistence,
		engine:      engine,
		logger:      logger.With("module", "rule-service"),
	}
}

// Create validates and persists a new automation rule. Rules carrying a cron
// expression also get a schedule row so the scheduler picks them up.
func (s *Rule) Create(ctx context.Context, rule *models.AutomationRule) (*models.AutomationRule, error) {
	if strings.TrimSpace(rule.OwnerID) == "" {
		return nil, ErrOperatorIDRequired
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rule.ID = uuid.New().String()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create rule: %w", err)
	}

	if rule.CronExpression != "" {
		if err := s.saveSchedule(ctx, rule); err != nil {
			return nil, err
		}
	}

	return rule, nil
}

// Update modifies an existing rule, keeping its schedule in sync with the
// rule's cron expression and active flag.
func (s *Rule) Update(ctx context.Context, ruleID string, rule *models.AutomationRule) (*models.AutomationRule, error) {
	existing, err := s.FetchByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}

	rule.ID = ruleID
	rule.OwnerID = existing.OwnerID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := s.persistence.Rules().Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to update rule: %w", err)
	}

	if rule.CronExpression == "" {
		if err := s.deleteSchedule(ctx, ruleID); err != nil {
			return nil, err
		}

		return rule, nil
	}

	if err := s.saveSchedule(ctx, rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// Delete removes a rule and its schedule, if any.
func (s *Rule) Delete(ctx context.Context, ruleID string) error {
	if strings.TrimSpace(ruleID) == "" {
		return ErrRuleIDRequired
	}

	if err := s.deleteSchedule(ctx, ruleID); err != nil {
		return err
	}

	return s.persistence.Rules().Delete(ctx, ruleID)
}

// FetchByID retrieves a rule by its ID.
func (s *Rule) FetchByID(ctx context.Context, ruleID string) (*models.AutomationRule, error) {
	if strings.TrimSpace(ruleID) == "" {
		return nil, ErrRuleIDRequired
	}

	return s.persistence.Rules().GetByID(ctx, ruleID)
}

// ListByOwner returns the operator's rules.
func (s *Rule) ListByOwner(ctx context.Context, ownerID string, activeOnly bool) ([]*models.AutomationRule, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOperatorIDRequired
	}

	return s.persistence.Rules().ListByOwner(ctx, ownerID, activeOnly)
}

// EvaluateEvent runs every active rule against an incoming business event.
// Per-rule failures are isolated inside the result; only infrastructure
// failures surface as errors.
func (s *Rule) EvaluateEvent(ctx context.Context, event *events.BusinessEvent) (*rules.EvaluationResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	return s.engine.EvaluateAllActiveRules(ctx, event)
}

func (s *Rule) deleteSchedule(ctx context.Context, ruleID string) error {
	err := s.persistence.Schedules().Delete(ctx, ruleID)
	if err != nil && !errors.Is(err, persistence.ErrScheduleNotFound) {
		return fmt.Errorf("failed to remove rule schedule: %w", err)
	}

	return nil
}

func (s *Rule) saveSchedule(ctx context.Context, rule *models.AutomationRule) error {
	schedule, err := models.NewRuleSchedule(uuid.New().String(), rule.ID, rule.CronExpression)
	if err != nil {
		return models.ErrRuleInvalidCron
	}

	schedule.Active = rule.IsActive

	if existing, err := s.persistence.Schedules().GetByRuleID(ctx, rule.ID); err == nil {
		schedule.ID = existing.ID
		schedule.CreatedAt = existing.CreatedAt
	}

	if err := s.persistence.Schedules().Save(ctx, schedule); err != nil {
		return fmt.Errorf("failed to save rule schedule: %w", err)
	}

	return nil
}
