package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/cadencehq/cadence/pkg/channels/gochannel"
	"github.com/cadencehq/cadence/pkg/channels/kafka"
	"github.com/cadencehq/cadence/pkg/eventbus"
)

func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "cadence")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-process pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}

// NewBusinessEventBus creates a business event bus instance based on the provider.
func NewBusinessEventBus(provider string, logger *slog.Logger) eventbus.BusinessEventBus {
	switch provider {
	case "kafka":
		businessEventBus, err := eventbus.NewKafkaBusinessEventBus(logger)
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka business event bus: %w", err))
		}

		return businessEventBus
	default:
		panic("Unsupported business event bus provider: " + provider)
	}
}
