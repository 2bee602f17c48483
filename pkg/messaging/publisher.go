// Package messaging defines the events the storefront publishes and the publisher abstraction.
package messaging

import (
	"context"
)

const (
	// StreamSubjects is the subject filter of the storefront JetStream stream.
	StreamSubjects = "storefront.>"

	OrdersPlacedSubject = "storefront.orders.placed"
	// CartSubjectPrefix is followed by the notification kind, e.g. storefront.cart.item_added.
	CartSubjectPrefix = "storefront.cart."
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// NopPublisher drops every event. Used when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
