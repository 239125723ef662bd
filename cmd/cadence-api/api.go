// Package main provides the Cadence API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/lifecycle"
	"github.com/cadencehq/cadence/pkg/persistence"
	"github.com/cadencehq/cadence/pkg/queue"
	"github.com/cadencehq/cadence/pkg/rules"
	"github.com/cadencehq/cadence/pkg/services"
	"github.com/cadencehq/cadence/pkg/snooze"
	"github.com/cadencehq/cadence/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	machine := lifecycle.NewMachine(a.persistence.Executions(), a.logger)

	executionService := services.NewExecution(a.persistence, machine, a.eventBus, a.logger)
	ruleService := services.NewRule(a.persistence, rules.NewEngine(a.persistence, a.logger), a.logger)
	queueService := services.NewQueue(queue.NewBuilder(a.persistence, queue.DefaultConfig(), a.logger), a.logger)
	snoozeService := services.NewSnooze(snooze.NewScheduler(a.persistence, machine, a.logger), a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(executionService, ruleService, queueService, snoozeService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cadence API")
	})

	e := app.Group("/executions")
	e.Post("/", handlers.CreateExecution)
	e.Get("/", handlers.ListExecutions)
	e.Get("/:id", handlers.GetExecution)
	e.Post("/:id/start", handlers.StartExecution)
	e.Post("/:id/complete", handlers.CompleteExecution)
	e.Post("/:id/skip", handlers.SkipExecution)
	e.Post("/:id/snooze", handlers.SnoozeExecution)
	e.Post("/:id/escalate", handlers.EscalateExecution)
	e.Post("/:id/steps", handlers.AppendStepResult)
	e.Post("/:id/review/open", handlers.OpenReview)
	e.Post("/:id/review/reject", handlers.RejectReview)
	e.Post("/:id/review/approve", handlers.ApproveReview)

	r := app.Group("/rules")
	r.Get("/", handlers.ListRules)
	r.Post("/", handlers.CreateRule)
	r.Get("/:id", handlers.GetRule)
	r.Patch("/:id", handlers.UpdateRule)
	r.Delete("/:id", handlers.DeleteRule)

	app.Get("/queue/:operatorId", handlers.GetQueue)
	app.Post("/events", handlers.IngestEvent)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
