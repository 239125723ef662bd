// Package eventbus also carries incoming business events from external systems.
package eventbus

import (
	"context"

	"github.com/cadencehq/cadence/pkg/events"
)

// BusinessEventHandler is called when a business event is received.
type BusinessEventHandler func(ctx context.Context, event *events.BusinessEvent) error

// BusinessEventPublisher publishes business events.
type BusinessEventPublisher interface {
	PublishBusinessEvent(ctx context.Context, event *events.BusinessEvent) error
}

// BusinessEventSubscriber subscribes to business events.
type BusinessEventSubscriber interface {
	HandleBusinessEvents(handler BusinessEventHandler) error
	SubscribeToBusinessEvents(ctx context.Context) error
}

// BusinessEventBus combines publishing and subscribing for business events.
type BusinessEventBus interface {
	BusinessEventPublisher
	BusinessEventSubscriber
	Close() error
}
