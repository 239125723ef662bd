// Package main provides the Cadence scheduler service: it polls due rule
// schedules and runs the periodic date-wake sweep.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/rules"
	"github.com/cadencehq/cadence/pkg/services"
)

// Scheduler drives time-based work: recurring rule evaluation passes and
// waking executions whose date triggers have passed.
type Scheduler struct {
	id            string
	persistence   persistence.Persistence
	engine        *rules.Engine
	snoozeService *services.Snooze
	interval      time.Duration
	logger        *slog.Logger
}

// NewScheduler creates a new Scheduler instance.
func NewScheduler(
	id string,
	persistence persistence.Persistence,
	engine *rules.Engine,
	snoozeService *services.Snooze,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		id:            id,
		persistence:   persistence,
		engine:        engine,
		snoozeService: snoozeService,
		interval:      interval,
		logger:        logger.With("module", "scheduler"),
	}
}

// Start begins the scheduler loop and blocks until the context is cancelled
// or a termination signal arrives.
func (s *Scheduler) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.handleSignals(cancel)

	s.logger.Info("Starting scheduler", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First pass immediately so a restart doesn't delay due work.
	s.tick(sCtx)

	for {
		select {
		case <-sCtx.Done():
			s.logger.Info("Scheduler context cancelled, stopping...")

			return
		case <-ticker.C:
			s.tick(sCtx)
		}
	}
}

func (s *Scheduler) handleSignals(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		s.logger.Info("Received signal", "signal", sig)
		cancel()
	}()
}

// tick runs one scheduler pass: due rule schedules first, then date wakes.
func (s *Scheduler) tick(ctx context.Context) {
	s.runDueSchedules(ctx)
	s.runDateWakes(ctx)
}

func (s *Scheduler) runDueSchedules(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.persistence.Schedules().ListDue(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	for _, schedule := range due {
		logger := s.logger.With("schedule_id", schedule.ID, "rule_id", schedule.RuleID)

		rule, err := s.persistence.Rules().GetByID(ctx, schedule.RuleID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to load rule for due schedule", "error", err)

			s.advance(ctx, schedule)

			continue
		}

		if rule.IsActive {
			result, err := s.engine.EvaluateScheduledRule(ctx, rule)
			if err != nil {
				logger.ErrorContext(ctx, "Scheduled rule pass failed", "error", err)
			} else {
				logger.InfoContext(ctx, "Scheduled rule pass complete",
					"evaluated", result.Evaluated, "launched", len(result.Launched))
			}
		}

		s.advance(ctx, schedule)
	}
}

// advance moves the schedule to its next due time. A schedule that cannot
// advance is deactivated so the poller does not spin on it.
func (s *Scheduler) advance(ctx context.Context, schedule *models.RuleSchedule) {
	if err := schedule.UpdateNextDueAt(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to compute next due time, deactivating schedule",
			"schedule_id", schedule.ID, "error", err)

		schedule.Active = false
	}

	if err := s.persistence.Schedules().Save(ctx, schedule); err != nil {
		s.logger.ErrorContext(ctx, "Failed to save schedule", "schedule_id", schedule.ID, "error", err)
	}
}

func (s *Scheduler) runDateWakes(ctx context.Context) {
	result, err := s.snoozeService.RunWakeSweep(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Date wake sweep failed", "error", err)

		return
	}

	if len(result.Woken) > 0 {
		s.logger.InfoContext(ctx, "Date wake sweep woke executions",
			"checked", result.Checked, "woken", len(result.Woken))
	}
}
