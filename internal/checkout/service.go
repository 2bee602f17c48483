package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
)

// Service places mock orders. The form is expected to be validated by the caller.
type Service struct {
	history       History
	publisher     messaging.Publisher
	logger        *slog.Logger
	ordersCounter metric.Int64Counter
	now           func() time.Time
}

func NewService(history History, publisher messaging.Publisher, logger *slog.Logger) (*Service, error) {
	meter := otel.Meter("storefront/checkout")
	ordersCounter, err := meter.Int64Counter("orders_placed", metric.WithDescription("Total number of placed orders"))
	if err != nil {
		return nil, fmt.Errorf("failed to create orders_placed counter: %w", err)
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}
	return &Service{
		history:       history,
		publisher:     publisher,
		logger:        logger.With("component", "checkout"),
		ordersCounter: ordersCounter,
		now:           time.Now,
	}, nil
}

// Summary returns the totals the cart would be charged.
func (s *Service) Summary(store *cart.Store) Totals {
	return ComputeTotals(store.Subtotal())
}

// PlaceOrder records an order for the cart content and clears the cart.
// Returns ErrEmptyCart if the cart has no items. The OrderPlacedEvent is published best effort.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, store *cart.Store, form Form) (*Order, error) {
	if store.Len() == 0 {
		return nil, perrors.ErrEmptyCart
	}
	id := uuid.New()
	order := Order{
		ID:       id.String(),
		Items:    store.Items(),
		Totals:   s.Summary(store),
		Status:   StatusPending,
		PlacedAt: s.now().UTC(),
		Shipping: form.Shipping,
	}
	if err := s.history.Append(ctx, sessionID, order); err != nil {
		return nil, fmt.Errorf("failed to record order: %w", err)
	}

	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	lines := make([]events.OrderLine, len(order.Items))
	for i, li := range order.Items {
		lines[i] = events.OrderLine{ProductID: li.Product.ID, Name: li.Product.Name, Quantity: li.Quantity, Price: li.Product.Price}
	}
	event := events.OrderPlacedEvent{
		Carrier:    carrier,
		OrderID:    id,
		SessionID:  sessionID,
		Items:      lines,
		GrandTotal: order.Totals.GrandTotal,
		PlacedAt:   order.PlacedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish OrderPlacedEvent", slog.String("order_id", order.ID), slog.Any("error", err))
	}
	s.ordersCounter.Add(ctx, 1)

	store.Clear(ctx)
	return &order, nil
}

// Orders returns the order history of sessionID, newest first.
func (s *Service) Orders(ctx context.Context, sessionID string) ([]Order, error) {
	orders, err := s.history.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
