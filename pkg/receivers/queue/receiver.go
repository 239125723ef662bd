// Package queue provides a Redis-backed receiver for business events.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cadencehq/cadence/pkg/events"
	redis "github.com/redis/go-redis/v9"
)

// Callback is invoked for each business event popped from the queue.
type Callback func(ctx context.Context, event *events.BusinessEvent) error

// Receiver consumes business events from a Redis list. External systems push
// JSON-encoded events onto the list; the receiver pops them and hands each one
// to the callback.
type Receiver struct {
	Connection map[string]string
	Queue      string
	Enabled    bool

	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewReceiver(ctx context.Context, config map[string]any, logger *slog.Logger) (*Receiver, error) {
	queue, _ := config["queue"].(string)

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)
	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	receiver := &Receiver{
		Connection: connection,
		Queue:      queue,
		Enabled:    true,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "queue_receiver",
			"queue", queue,
		),
	}

	err := receiver.Validate(ctx)
	if err != nil {
		return nil, err
	}

	return receiver, nil
}

func (r *Receiver) Validate(_ context.Context) error {
	if r.Queue == "" {
		return errors.New("queue receiver queue name is required")
	}

	return nil
}

func (r *Receiver) Start(ctx context.Context, callback Callback) error {
	if !r.Enabled {
		r.logger.InfoContext(ctx, "Queue receiver is disabled.")

		return nil
	}

	r.logger.InfoContext(ctx, "Starting queue receiver")
	r.callback = callback

	err := r.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	r.wg.Add(1)

	go r.consume(ctx)

	return nil
}

func (r *Receiver) initializeClient(ctx context.Context) error {
	addr := r.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := r.Connection["password"]
	db := 0

	if dbStr := r.Connection["db"]; dbStr != "" {
		var err error
		if db, err = r.parseDB(dbStr); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := r.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (r *Receiver) parseDB(dbStr string) (int, error) {
	var db int

	_, err := fmt.Sscanf(dbStr, "%d", &db)

	return db, err
}

func (r *Receiver) consume(ctx context.Context) {
	defer r.wg.Done()

	r.logger.InfoContext(ctx, "Starting queue consumer", "queue", r.Queue)

	for {
		select {
		case <-r.stopCh:
			r.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := r.processMessage(ctx)
			if err != nil {
				r.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (r *Receiver) processMessage(ctx context.Context) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var event events.BusinessEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return fmt.Errorf("malformed business event payload: %w", err)
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid business event: %w", err)
	}

	r.logger.InfoContext(ctx, "Received business event from queue",
		"event_id", event.ID, "event_type", event.Type, "customer_id", event.CustomerID)

	go func() {
		err := r.callback(ctx, &event)
		if err != nil {
			r.logger.ErrorContext(ctx, "Error handling business event", "error", err)
		}
	}()

	return nil
}

func (r *Receiver) Stop(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Stopping queue receiver")

	close(r.stopCh)
	r.wg.Wait()

	if r.client != nil {
		err := r.client.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
