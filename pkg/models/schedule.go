package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// RuleSchedule is a stored schedule entry for recurring evaluation of an
// automation rule. The next execution time is precomputed so the scheduler
// can poll for due entries with a single query instead of holding one timer
// per rule.
type RuleSchedule struct {
	ID string `json:"id" validate:"required"`

	// RuleID identifies the automation rule this schedule evaluates.
	RuleID string `json:"rule_id" validate:"required"`

	// CronExpression uses the standard 5-field format
	// (minute hour day month weekday).
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextDueAt is the precomputed next evaluation time.
	NextDueAt time.Time `json:"next_due_at" validate:"required"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Active schedules are the only ones the poller considers.
	Active bool `json:"active"`
}

var ErrInvalidRuleSchedule = errors.New("invalid rule schedule configuration")

// NewRuleSchedule creates a schedule with its first due time calculated.
func NewRuleSchedule(id, ruleID, cronExpression string) (*RuleSchedule, error) {
	now := time.Now().UTC()
	schedule := &RuleSchedule{
		ID:             id,
		RuleID:         ruleID,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.calculateNextDueAt(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// UpdateNextDueAt recomputes the next due time from now.
func (s *RuleSchedule) UpdateNextDueAt() error {
	return s.calculateNextDueAt(time.Now().UTC())
}

func (s *RuleSchedule) calculateNextDueAt(referenceTime time.Time) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	cronSchedule, err := parser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = cronSchedule.Next(referenceTime)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue reports whether the schedule should run at the given time.
func (s *RuleSchedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}

// Validate checks the schedule fields, including cron expression format.
func (s *RuleSchedule) Validate() error {
	if s.ID == "" || s.RuleID == "" || s.CronExpression == "" {
		return ErrInvalidRuleSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	_, err := parser.Parse(s.CronExpression)

	return err
}
