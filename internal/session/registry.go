// Package session owns the per-session cart stores and their lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/abgdnv/storefront/internal/slot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var errEvicted = errors.New("session evicted")

// Session is the cart of one visitor. Operations on it are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	store    *cart.Store
	recorder notify.Recorder
	lastUsed time.Time
	evicted  bool
	flushed  chan struct{}
	// prev is the evicted session of the same id, possibly still flushing.
	prev *Session
}

// Registry opens cart stores on first use and evicts them after idleTTL without activity.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	draining map[string]*Session

	backend   slot.Backend
	sink      notify.Sink
	idleTTL   time.Duration
	logger    *slog.Logger
	cartLog   *slog.Logger
	now       func() time.Time
	mutations metric.Int64Counter
	notices   metric.Int64Counter
	active    metric.Int64UpDownCounter
}

// NewRegistry creates a Registry. Notifications of every session are also sent to sink.
func NewRegistry(backend slot.Backend, sink notify.Sink, idleTTL time.Duration, logger *slog.Logger) (*Registry, error) {
	meter := otel.Meter("storefront/session")
	mutations, err := meter.Int64Counter("cart_mutations", metric.WithDescription("Cart state transitions"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cart_mutations counter: %w", err)
	}
	notices, err := meter.Int64Counter("cart_notifications", metric.WithDescription("Cart notifications by kind"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cart_notifications counter: %w", err)
	}
	active, err := meter.Int64UpDownCounter("cart_sessions_active", metric.WithDescription("Cart sessions held in memory"))
	if err != nil {
		return nil, fmt.Errorf("failed to create cart_sessions_active counter: %w", err)
	}
	if sink == nil {
		sink = notify.Discard
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		draining:  make(map[string]*Session),
		backend:   backend,
		sink:      sink,
		idleTTL:   idleTTL,
		logger:    logger.With("component", "session"),
		cartLog:   logger,
		now:       time.Now,
		mutations: mutations,
		notices:   notices,
		active:    active,
	}, nil
}

func (r *Registry) lookup(ctx context.Context, id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id, lastUsed: r.now(), prev: r.draining[id]}
		r.sessions[id] = s
		r.active.Add(ctx, 1)
	}
	return s
}

// Do runs fn against the cart of session id and returns the notifications fn produced.
func (r *Registry) Do(ctx context.Context, id string, fn func(*cart.Store) error) ([]notify.Notification, error) {
	for {
		notes, err := r.do(ctx, r.lookup(ctx, id), fn)
		if errors.Is(err, errEvicted) {
			continue
		}
		return notes, err
	}
}

func (r *Registry) do(ctx context.Context, s *Session, fn func(*cart.Store) error) ([]notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.evicted {
		return nil, errEvicted
	}
	if s.store == nil {
		if s.prev != nil {
			<-s.prev.flushed
			s.prev = nil
		}
		s.store = r.open(ctx, s)
	}
	s.lastUsed = r.now()
	s.recorder.Drain()
	err := fn(s.store)
	return s.recorder.Drain(), err
}

func (r *Registry) open(ctx context.Context, s *Session) *cart.Store {
	counting := notify.SinkFunc(func(ctx context.Context, n notify.Notification) {
		r.notices.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
	})
	store := cart.Open(ctx, slot.NewKeyed(r.backend, slot.Key(s.ID)),
		cart.WithSink(notify.Multi(&s.recorder, counting, r.sink)),
		cart.WithLogger(r.cartLog),
	)
	store.OnChange(func([]cart.LineItem) {
		r.mutations.Add(context.Background(), 1)
	})
	return store
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Evict flushes and drops sessions idle for longer than idleTTL. Sessions busy with an
// operation are skipped. It returns the number of evicted sessions.
func (r *Registry) Evict(ctx context.Context) int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.idleTTL)
	var idle []*Session
	for _, s := range r.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if !s.lastUsed.Before(cutoff) {
			s.mu.Unlock()
			continue
		}
		idle = append(idle, r.detach(s))
	}
	r.mu.Unlock()

	r.drain(ctx, idle)
	if len(idle) > 0 {
		r.active.Add(ctx, -int64(len(idle)))
		r.logger.DebugContext(ctx, "evicted idle sessions", slog.Int("count", len(idle)))
	}
	return len(idle)
}

// detach removes the locked session s from the registry. r.mu must be held.
func (r *Registry) detach(s *Session) *Session {
	s.evicted = true
	s.flushed = make(chan struct{})
	delete(r.sessions, s.ID)
	r.draining[s.ID] = s
	return s
}

// drain flushes and unlocks detached sessions without holding r.mu.
func (r *Registry) drain(ctx context.Context, sessions []*Session) {
	for _, s := range sessions {
		r.flush(ctx, s)
		close(s.flushed)
		s.mu.Unlock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		if r.draining[s.ID] == s {
			delete(r.draining, s.ID)
		}
	}
}

// Run evicts idle sessions every interval until ctx is done, then flushes every session.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-ticker.C:
			r.Evict(ctx)
		}
	}
}

// Close flushes and drops every session. Operations in flight finish first.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		s.mu.Lock()
		all = append(all, r.detach(s))
	}
	r.mu.Unlock()

	r.drain(ctx, all)
	r.active.Add(ctx, -int64(len(all)))
}

func (r *Registry) flush(ctx context.Context, s *Session) {
	if s.store == nil {
		return
	}
	if err := s.store.Flush(ctx); err != nil {
		r.logger.WarnContext(ctx, "failed to flush cart", slog.String("session_id", s.ID), slog.Any("error", err))
	}
}
