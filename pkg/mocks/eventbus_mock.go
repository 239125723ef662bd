// Package mocks provides testify mocks for the event bus interfaces.
package mocks

import (
	"context"

	"github.com/cadencehq/cadence/pkg/eventbus"
	"github.com/cadencehq/cadence/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockEventBus is a mock implementation of eventbus.EventBus.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	args := m.Called(ctx, key, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}

func (m *MockEventBus) GenerateID() string {
	args := m.Called()

	return args.String(0)
}

// MockBusinessEventBus is a mock implementation of eventbus.BusinessEventBus.
type MockBusinessEventBus struct {
	mock.Mock
}

func (m *MockBusinessEventBus) PublishBusinessEvent(ctx context.Context, event *events.BusinessEvent) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockBusinessEventBus) HandleBusinessEvents(handler eventbus.BusinessEventHandler) error {
	args := m.Called(handler)

	return args.Error(0)
}

func (m *MockBusinessEventBus) SubscribeToBusinessEvents(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockBusinessEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
