package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"
)

// ackableMsg is the part of jetstream.Msg the consumer relies on.
type ackableMsg interface {
	Subject() string
	Data() []byte
	Ack() error
	Term() error
}

// Consumer drains storefront events from a JetStream stream and hands them to the delivery sink.
type Consumer struct {
	deliver  Sink
	logger   *slog.Logger
	messages metric.Int64Counter
}

// NewConsumer creates a Consumer. Cart notifications are re-emitted on deliver.
func NewConsumer(deliver Sink, logger *slog.Logger) (*Consumer, error) {
	messages, err := otel.Meter("storefront/notifier").Int64Counter("notifier_messages",
		metric.WithDescription("Storefront events processed by the notifier"))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}
	return &Consumer{
		deliver:  deliver,
		logger:   logger.With("component", "consumer"),
		messages: messages,
	}, nil
}

// Start creates the durable consumer on stream and runs cfg.Workers workers until ctx is done.
func (c *Consumer) Start(ctx context.Context, js jetstream.JetStream, stream string, cfg config.SubscriberConfig) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:        cfg.Consumer,
		FilterSubjects: cfg.Subjects,
		AckPolicy:      jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", cfg.Consumer, err)
	}
	g, gCtx := errgroup.WithContext(ctx)
	for range cfg.Workers {
		g.Go(func() error {
			return c.runWorker(gCtx, consumer, cfg)
		})
	}
	return g.Wait()
}

func (c *Consumer) runWorker(ctx context.Context, consumer jetstream.Consumer, cfg config.SubscriberConfig) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		batch, err := consumer.Fetch(cfg.Batch, jetstream.FetchMaxWait(cfg.Timeout))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.ErrorContext(ctx, "failed to fetch messages", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Interval):
			}
			continue
		}
		for msg := range batch.Messages() {
			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage acknowledges every message it can decode. Undecodable payloads are terminated
// so that JetStream does not redeliver them.
func (c *Consumer) handleMessage(ctx context.Context, msg ackableMsg) {
	if msg == nil {
		c.logger.ErrorContext(ctx, "received nil message")
		return
	}
	subject := msg.Subject()
	var err error
	switch {
	case subject == messaging.OrdersPlacedSubject:
		err = c.handleOrderPlaced(ctx, msg.Data())
	case strings.HasPrefix(subject, messaging.CartSubjectPrefix):
		err = c.handleCartNotification(ctx, msg.Data())
	default:
		err = fmt.Errorf("unexpected subject %s", subject)
	}

	result := "ok"
	if err != nil {
		result = "rejected"
		c.logger.ErrorContext(ctx, "failed to handle message", slog.String("subject", subject), slog.Any("error", err))
		if termErr := msg.Term(); termErr != nil {
			c.logger.ErrorContext(ctx, "failed to terminate message", slog.Any("error", termErr))
		}
	} else if ackErr := msg.Ack(); ackErr != nil {
		c.logger.ErrorContext(ctx, "failed to ack message", slog.Any("error", ackErr))
	}
	c.messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("subject", subject),
		attribute.String("result", result)))
}

func (c *Consumer) handleOrderPlaced(ctx context.Context, data []byte) error {
	var event events.OrderPlacedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order placed event: %w", err)
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(event.Carrier))
	c.logger.InfoContext(ctx, "order confirmation sent",
		slog.String("order_id", event.OrderID.String()),
		slog.String("session_id", event.SessionID),
		slog.Int("items", len(event.Items)),
		slog.String("grand_total", event.GrandTotal.StringFixed(2)),
		slog.String("placed_at", event.PlacedAt.Format(time.RFC3339)))
	return nil
}

func (c *Consumer) handleCartNotification(ctx context.Context, data []byte) error {
	var event events.CartNotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal cart notification: %w", err)
	}
	if event.Kind == "" {
		return errors.New("cart notification without kind")
	}
	c.deliver.Notify(ctx, Notification{
		Kind:        Kind(event.Kind),
		Title:       event.Title,
		Description: event.Description,
		Severity:    Severity(event.Severity),
	})
	return nil
}
