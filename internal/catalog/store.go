package catalog

import "context"

// Store is the read-only product source.
type Store interface {
	// FindAll returns every product in catalog order.
	FindAll(ctx context.Context) ([]Product, error)

	// FindByID returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id string) (*Product, error)
}
