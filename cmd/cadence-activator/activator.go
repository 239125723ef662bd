package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/cadencehq/cadence/pkg/otelhelper"
	"github.com/cadencehq/cadence/pkg/receivers/queue"
	"github.com/cadencehq/cadence/pkg/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Activator consumes business events and feeds them to the rule engine and
// the event wake scheduler.
type Activator struct {
	id               string
	businessEventBus eventbus.BusinessEventBus
	queueReceiver    *queue.Receiver
	ruleService      *services.Rule
	snoozeService    *services.Snooze
	tracer           trace.Tracer
	logger           *slog.Logger
	restartCount     int
}

// NewActivator creates a new Activator instance.
func NewActivator(
	id string,
	businessEventBus eventbus.BusinessEventBus,
	queueReceiver *queue.Receiver,
	ruleService *services.Rule,
	snoozeService *services.Snooze,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Activator {
	return &Activator{
		id:               id,
		businessEventBus: businessEventBus,
		queueReceiver:    queueReceiver,
		ruleService:      ruleService,
		snoozeService:    snoozeService,
		tracer:           tracer,
		logger:           logger.With("module", "activator"),
	}
}

// Start begins the activator service.
func (a *Activator) Start(ctx context.Context) {
	aCtx, cancel := context.WithCancel(ctx)

	a.logger.Info("Starting activator")

	a.handleSignals(aCtx, cancel)
	a.run(aCtx)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (a *Activator) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		a.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			a.logger.Info("Reloading configuration...")
			a.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			a.logger.Info("Shutting down gracefully...")
			a.stop(cancel)
			os.Exit(0)
		default:
			a.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with exponential backoff.
func (a *Activator) restart(ctx context.Context, cancel context.CancelFunc) {
	a.restartCount++
	newCtx := context.WithoutCancel(ctx)

	a.stop(cancel)

	if a.restartCount > 5 {
		a.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(a.restartCount) * time.Second
	a.logger.Info("Restarting activator...", "backoff", backoff)
	time.Sleep(backoff)

	a.Start(newCtx)
}

// run is the main loop that consumes business events.
func (a *Activator) run(ctx context.Context) {
	a.logger.Info("Starting business event consumption")

	a.processBusinessEvents(ctx)
	a.startQueueReceiver(ctx)

	// The subscriptions run in background goroutines.
	<-ctx.Done()
	a.logger.Info("Activator context cancelled, stopping...")
}

// processBusinessEvents subscribes to the business event topic.
func (a *Activator) processBusinessEvents(ctx context.Context) {
	a.logger.Info("Setting up business event subscription")

	err := a.businessEventBus.HandleBusinessEvents(func(ctx context.Context, event *events.BusinessEvent) error {
		return a.handleBusinessEvent(ctx, event)
	})
	if err != nil {
		a.logger.Error("Failed to register business event handler", "error", err)

		return
	}

	err = a.businessEventBus.SubscribeToBusinessEvents(ctx)
	if err != nil {
		a.logger.Error("Failed to start business event subscription", "error", err)

		return
	}

	a.logger.Info("Successfully subscribed to business events - waiting for events...")
}

// startQueueReceiver starts the Redis queue receiver when one is configured.
func (a *Activator) startQueueReceiver(ctx context.Context) {
	if a.queueReceiver == nil {
		return
	}

	err := a.queueReceiver.Start(ctx, func(ctx context.Context, event *events.BusinessEvent) error {
		return a.handleBusinessEvent(ctx, event)
	})
	if err != nil {
		a.logger.Error("Failed to start queue receiver", "error", err)

		return
	}

	a.logger.Info("Queue receiver started")
}

// handleBusinessEvent runs one event through rule evaluation and the event
// wake pass.
func (a *Activator) handleBusinessEvent(ctx context.Context, event *events.BusinessEvent) error {
	spanCtx, span := otelhelper.StartSpan(ctx, a.tracer, "activator.handle_business_event",
		attribute.String(otelhelper.EventTypeKey, event.Type),
		attribute.String(otelhelper.CustomerIDKey, event.CustomerID),
	)
	defer span.End()

	logger := a.logger.With("event_type", event.Type, "customer_id", event.CustomerID)
	logger.Info("Processing business event")

	if err := event.Validate(); err != nil {
		otelhelper.SetError(span, err)
		logger.Error("Invalid business event", "error", err)

		return err
	}

	evaluation, err := a.ruleService.EvaluateEvent(spanCtx, event)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.Error("Rule evaluation failed", "error", err)

		return err
	}

	logger.Info("Rule evaluation complete",
		"evaluated", evaluation.Evaluated,
		"launched", len(evaluation.Launched),
		"errors", len(evaluation.Errors))

	wake, err := a.snoozeService.RunWakeSweep(spanCtx, event)
	if err != nil {
		otelhelper.SetError(span, err)
		logger.Error("Event wake sweep failed", "error", err)

		return err
	}

	if len(wake.Woken) > 0 {
		logger.Info("Event woke snoozed executions", "woken", len(wake.Woken))
	}

	return nil
}

// stop gracefully shuts down the activator.
func (a *Activator) stop(cancel context.CancelFunc) {
	a.logger.Info("Stopping activator")

	if a.queueReceiver != nil {
		if err := a.queueReceiver.Stop(context.Background()); err != nil {
			a.logger.Error("Failed to stop queue receiver", "error", err)
		}
	}

	if cancel != nil {
		cancel()
	}
}
