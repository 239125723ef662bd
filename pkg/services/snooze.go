package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/snooze"
	"github.com/google/uuid"
)

// Snooze is the application service for suspending and waking executions.
type Snooze struct {
	scheduler *snooze.Scheduler
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewSnooze creates a new snooze service.
func NewSnooze(scheduler *snooze.Scheduler, publisher eventbus.EventPublisher, logger *slog.Logger) *Snooze {
	return &Snooze{
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger.With("module", "snooze-service"),
	}
}

// SnoozeExecution suspends an execution until one of the wake triggers fires.
func (s *Snooze) SnoozeExecution(ctx context.Context, executionID string, triggers []models.WakeTrigger, actorID string) (*models.WorkflowExecution, error) {
	if strings.TrimSpace(executionID) == "" {
		return nil, ErrExecutionIDRequired
	}

	execution, err := s.scheduler.SnoozeWithTriggers(ctx, executionID, triggers, actorID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, execution.ID, events.ExecutionSnoozed{
		BaseEvent: events.BaseEvent{
			ID:          uuid.New().String(),
			Type:        events.ExecutionSnoozedEvent,
			Timestamp:   time.Now().UTC(),
			ExecutionID: execution.ID,
			CustomerID:  execution.CustomerID,
			ActorID:     actorID,
		},
		SnoozedUntil: execution.SnoozedUntil,
		TriggerCount: len(triggers),
	})

	return execution, nil
}

// RunWakeSweep evaluates wake conditions across all snoozed executions. A nil
// event means a periodic tick: only date triggers can fire.
func (s *Snooze) RunWakeSweep(ctx context.Context, event *events.BusinessEvent) (*snooze.WakeResult, error) {
	result, err := s.scheduler.EvaluateWakeConditions(ctx, event)
	if err != nil {
		return nil, err
	}

	source := "date"
	if event != nil {
		source = "event"
	}

	for _, executionID := range result.Woken {
		s.publish(ctx, executionID, events.ExecutionWoken{
			BaseEvent: events.BaseEvent{
				ID:          uuid.New().String(),
				Type:        events.ExecutionWokenEvent,
				Timestamp:   time.Now().UTC(),
				ExecutionID: executionID,
			},
			WakeSource: source,
		})
	}

	return result, nil
}

func (s *Snooze) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	err := s.publisher.Publish(ctx, key, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish snooze event",
			"error", err, "event_type", event.GetType(), "execution_id", key)
	}
}
