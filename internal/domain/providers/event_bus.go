package providers

import (
	"context"

	"github.com/iamgolden55/basebackend-sub001/internal/domain/entities"
)

// EventChannelCreditActivity carries every committed ledger mutation
const EventChannelCreditActivity = "credit-activity"

// EventBus defines the interface for publishing and consuming credit events
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.CreditEvent) error

	// Subscribe subscribes to events on a channel. The returned channel is
	// closed when ctx is cancelled or the bus shuts down.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.CreditEvent, error)

	// Unsubscribe tears down a channel subscription
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}
