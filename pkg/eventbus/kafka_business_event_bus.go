package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cadencehq/cadence/pkg/channels/kafka"
	"github.com/cadencehq/cadence/pkg/events"
)

// kafkaBusinessEventBus implements BusinessEventBus using Kafka via Watermill.
type kafkaBusinessEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	handlers   []BusinessEventHandler
	logger     *slog.Logger
}

// NewKafkaBusinessEventBus creates a new Kafka-based business event bus.
func NewKafkaBusinessEventBus(logger *slog.Logger) (BusinessEventBus, error) {
	pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "business-events")
	if err != nil {
		return nil, err
	}

	return &kafkaBusinessEventBus{
		publisher:  pub,
		subscriber: sub,
		handlers:   make([]BusinessEventHandler, 0),
		logger:     logger.With("module", "kafka-business-event-bus"),
	}, nil
}

// PublishBusinessEvent publishes a business event to Kafka.
func (k *kafkaBusinessEventBus) PublishBusinessEvent(ctx context.Context, event *events.BusinessEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		k.logger.Error("Failed to marshal business event", "error", err, "event_id", event.ID)

		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("key", event.CustomerID) // Required for Kafka partitioning
	msg.Metadata.Set("customer_id", event.CustomerID)
	msg.Metadata.Set("event_type", event.Type)

	k.logger.Debug("Publishing business event to Kafka",
		"event_id", event.ID,
		"customer_id", event.CustomerID,
		"event_type", event.Type,
		"topic", events.BusinessEventsTopic)

	err = k.publisher.Publish(events.BusinessEventsTopic, msg)
	if err != nil {
		k.logger.Error("Failed to publish business event to Kafka", "error", err)

		return err
	}

	return nil
}

// HandleBusinessEvents registers a handler for business events.
func (k *kafkaBusinessEventBus) HandleBusinessEvents(handler BusinessEventHandler) error {
	k.handlers = append(k.handlers, handler)
	k.logger.Debug("Registered business event handler", "total_handlers", len(k.handlers))

	return nil
}

// SubscribeToBusinessEvents starts consuming business events from Kafka.
func (k *kafkaBusinessEventBus) SubscribeToBusinessEvents(ctx context.Context) error {
	if len(k.handlers) == 0 {
		k.logger.Warn("No handlers registered for business events")

		return nil
	}

	k.logger.Info("Starting Kafka business event subscription", "topic", events.BusinessEventsTopic)

	messages, err := k.subscriber.Subscribe(ctx, events.BusinessEventsTopic)
	if err != nil {
		k.logger.Error("Failed to subscribe to Kafka topic", "error", err, "topic", events.BusinessEventsTopic)

		return err
	}

	go func() {
		for msg := range messages {
			var event events.BusinessEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				k.logger.Error("Failed to unmarshal business event", "error", err, "message_id", msg.UUID)
				msg.Nack()

				continue
			}

			k.logger.Info("Processing business event from Kafka",
				"event_id", event.ID,
				"customer_id", event.CustomerID,
				"event_type", event.Type)

			success := true

			for _, handler := range k.handlers {
				if err := handler(ctx, &event); err != nil {
					k.logger.Error("Business event handler failed",
						"error", err,
						"event_id", event.ID,
						"event_type", event.Type)

					success = false
				}
			}

			if success {
				msg.Ack()
			} else {
				msg.Nack()
			}
		}
	}()

	return nil
}

// Close shuts down the Kafka business event bus.
func (k *kafkaBusinessEventBus) Close() error {
	k.logger.Info("Closing Kafka business event bus")

	var publisherErr, subscriberErr error

	if k.publisher != nil {
		publisherErr = k.publisher.Close()
		if publisherErr != nil {
			k.logger.Error("Failed to close Kafka publisher", "error", publisherErr)
		}
	}

	if k.subscriber != nil {
		subscriberErr = k.subscriber.Close()
		if subscriberErr != nil {
			k.logger.Error("Failed to close Kafka subscriber", "error", subscriberErr)
		}
	}

	if publisherErr != nil {
		return publisherErr
	}

	return subscriberErr
}
