// Package errors defines the sentinel errors of the storefront domain.
package errors

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrEmptyCart       = errors.New("cart is empty")

	// ErrSlotEmpty is returned by a persistence slot that holds no snapshot.
	ErrSlotEmpty = errors.New("persistence slot is empty")
	// ErrUnsupportedSnapshot is returned when a stored snapshot has an unknown schema version.
	ErrUnsupportedSnapshot = errors.New("unsupported snapshot version")
)
