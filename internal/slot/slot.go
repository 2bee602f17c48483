// Package slot provides the key-value backends that hold serialized carts.
package slot

import (
	"context"
)

// Backend is a key-value store for cart snapshots.
// Get returns errors.ErrSlotEmpty when the key does not exist.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Key returns the slot key of a cart session.
func Key(sessionID string) string {
	return "cart:" + sessionID
}

// Keyed binds a Backend to a single key, making it a cart.Slot.
type Keyed struct {
	backend Backend
	key     string
}

func NewKeyed(backend Backend, key string) *Keyed {
	return &Keyed{backend: backend, key: key}
}

func (k *Keyed) Load(ctx context.Context) ([]byte, error) {
	return k.backend.Get(ctx, k.key)
}

func (k *Keyed) Save(ctx context.Context, data []byte) error {
	return k.backend.Put(ctx, k.key, data)
}

// Delete removes the entry. A missing key is not an error.
func (k *Keyed) Delete(ctx context.Context) error {
	return k.backend.Delete(ctx, k.key)
}
