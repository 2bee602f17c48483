package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/abgdnv/storefront/pkg/web"
)

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})

// LogSink writes notifications to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "notify")}
}

func (s *LogSink) Notify(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Severity != SeverityInfo {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, n.Title,
		slog.String("kind", string(n.Kind)),
		slog.String("description", n.Description),
		slog.String("severity", string(n.Severity)))
}

// Recorder buffers notifications until they are drained.
type Recorder struct {
	mu  sync.Mutex
	buf []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, n)
}

// Drain returns the buffered notifications in emission order and empties the buffer.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.buf
	r.buf = nil
	return out
}

type multi []Sink

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}

// Multi fans a notification out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// PublisherSink forwards notifications as CartNotificationEvent. Notify only enqueues;
// Run publishes. Events arriving while the queue is full are logged and dropped, as are
// publish errors.
type PublisherSink struct {
	publisher messaging.Publisher
	logger    *slog.Logger
	timeout   time.Duration
	queue     chan events.CartNotificationEvent
	now       func() time.Time
}

func NewPublisherSink(publisher messaging.Publisher, timeout time.Duration, buffer int, logger *slog.Logger) *PublisherSink {
	return &PublisherSink{
		publisher: publisher,
		logger:    logger.With("component", "notify"),
		timeout:   timeout,
		queue:     make(chan events.CartNotificationEvent, max(buffer, 1)),
		now:       time.Now,
	}
}

func (s *PublisherSink) Notify(ctx context.Context, n Notification) {
	sessionID, _ := web.GetSessionID(ctx)
	event := events.CartNotificationEvent{
		SessionID:   sessionID,
		Kind:        string(n.Kind),
		Title:       n.Title,
		Description: n.Description,
		Severity:    string(n.Severity),
		OccurredAt:  s.now().UTC(),
	}
	select {
	case s.queue <- event:
	default:
		s.logger.WarnContext(ctx, "notification queue full, dropping cart notification",
			slog.String("subject", event.Subject()))
	}
}

// Run publishes queued events until ctx is done, then publishes what is left and returns ctx.Err().
func (s *PublisherSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			s.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case event := <-s.queue:
			s.publish(context.WithoutCancel(ctx), event)
		}
	}
}

func (s *PublisherSink) drain(ctx context.Context) {
	for {
		select {
		case event := <-s.queue:
			s.publish(ctx, event)
		default:
			return
		}
	}
}

func (s *PublisherSink) publish(ctx context.Context, event events.CartNotificationEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish cart notification",
			slog.String("subject", event.Subject()),
			slog.String("session_id", event.SessionID),
			slog.Any("error", err))
	}
}
