package slot

import (
	"context"
	"errors"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// Breaker wraps a Backend in a circuit breaker. While open, calls fail fast with
// gobreaker.ErrOpenState instead of reaching the backend.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[[]byte]
}

func NewBreaker(name string, next Backend, cfg config.CircuitBreakerConfig) *Breaker {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		// a missing key or a cancelled request says nothing about backend health
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, perrors.ErrSlotEmpty) ||
				errors.Is(err, context.Canceled)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[[]byte](st)}
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	return b.cb.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *Breaker) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Put(ctx, key, data)
	})
	return err
}

func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Delete(ctx, key)
	})
	return err
}

// State reports the breaker state, e.g. for health checks.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
