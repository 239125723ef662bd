package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cadencehq/cadence/pkg/cmd"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/log"
	"github.com/cadencehq/cadence/pkg/otelhelper"
	"github.com/cadencehq/cadence/pkg/receivers/queue"
	"github.com/cadencehq/cadence/pkg/rules"
	"github.com/cadencehq/cadence/pkg/services"
	"github.com/cadencehq/cadence/pkg/snooze"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "cadence-activator",
		Usage:                 "Start the Cadence activator service",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "activator-id",
				Aliases: []string{"id"},
				Usage:   "Custom activator ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ACTIVATOR_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "business-event-bus",
				Usage:   "Business event bus type (kafka)",
				Value:   "kafka",
				Sources: cli.EnvVars("BUSINESS_EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "queue-name",
				Usage:   "Redis queue to consume business events from (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("EVENT_QUEUE_NAME"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis address for the queue receiver",
				Value:   "localhost:6379",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracerProvider, err := otelhelper.InitTracer(ctx, "cadence-activator")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			activatorID := command.String("activator-id")
			if activatorID == "" {
				activatorID = fmt.Sprintf("activator-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("cadence-activator").With("activator_id", activatorID)

			logger.Info("Initializing Cadence Activator", "activator_id", activatorID)

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			businessEventBus := cmd.NewBusinessEventBus(command.String("business-event-bus"), logger)
			defer func() {
				if err := businessEventBus.Close(); err != nil {
					logger.Error("Failed to close business event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			var queueReceiver *queue.Receiver

			if queueName := command.String("queue-name"); queueName != "" {
				queueReceiver, err = queue.NewReceiver(ctx, map[string]any{
					"queue": queueName,
					"connection": map[string]any{
						"addr": command.String("redis-url"),
					},
				}, logger)
				if err != nil {
					return fmt.Errorf("failed to create queue receiver: %w", err)
				}
			}

			tracer, err := otelhelper.NewTracer(ctx, "cadence-activator")
			if err != nil {
				return fmt.Errorf("failed to create tracer: %w", err)
			}

			machine := lifecycle.NewMachine(persistence.Executions(), logger)
			ruleService := services.NewRule(persistence, rules.NewEngine(persistence, logger), logger)
			snoozeService := services.NewSnooze(
				snooze.NewScheduler(persistence, machine, logger), eventBus, logger)

			activator := NewActivator(
				activatorID,
				businessEventBus,
				queueReceiver,
				ruleService,
				snoozeService,
				tracer,
				logger,
			)

			activator.Start(ctx)

			return nil
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
