// Package cart implements the session cart: line items with stock ceilings, derived totals,
// write-through persistence and a notification per mutation.
package cart

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/shopspring/decimal"
)

// LineItem is a product in the cart. Quantity is always within [1, Product.Stock].
type LineItem struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// Total is price times quantity.
func (li LineItem) Total() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Slot is the key-value entry holding the serialized cart.
// Load returns ErrSlotEmpty when nothing has been saved yet.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Deleter is implemented by slots that can drop their entry.
// An empty cart is deleted from such a slot instead of saved.
type Deleter interface {
	Delete(ctx context.Context) error
}

// Listener observes the line items after every state transition.
type Listener func(items []LineItem)

type Option func(*Store)

// WithSink sets the notification sink. Notifications are discarded by default.
func WithSink(sink notify.Sink) Option {
	return func(s *Store) { s.sink = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store owns the line items of one cart. It is not safe for concurrent use;
// callers serialize access (see session.Registry).
type Store struct {
	items     []LineItem
	slot      Slot
	sink      notify.Sink
	logger    *slog.Logger
	listeners []Listener
	now       func() time.Time
}

// Open creates a store and restores its state from slot. A nil slot disables persistence.
// Unreadable or invalid snapshots are logged and an empty cart is used instead.
func Open(ctx context.Context, slot Slot, opts ...Option) *Store {
	s := &Store{
		slot:   slot,
		sink:   notify.Discard,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "cart")
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	if s.slot == nil {
		return
	}
	data, err := s.slot.Load(ctx)
	if err != nil {
		if !errors.Is(err, perrors.ErrSlotEmpty) {
			s.logger.WarnContext(ctx, "failed to load cart snapshot, starting empty", slog.Any("error", err))
		}
		return
	}
	items, err := DecodeSnapshot(data)
	if err != nil {
		s.logger.WarnContext(ctx, "discarding unreadable cart snapshot", slog.Any("error", err))
		return
	}
	s.items = Sanitize(items)
}

// OnChange registers l to be called after every mutation.
func (s *Store) OnChange(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Store) indexOf(productID string) int {
	return slices.IndexFunc(s.items, func(li LineItem) bool { return li.Product.ID == productID })
}

// Add puts quantity units of product into the cart, capped at product.Stock.
// A quantity below 1 adds one unit. Products without stock are rejected.
// The stored product record is replaced with the given one.
func (s *Store) Add(ctx context.Context, product catalog.Product, quantity int) {
	if quantity < 1 {
		quantity = 1
	}
	if product.Stock < 1 {
		s.sink.Notify(ctx, notify.OutOfStock(product.Name))
		return
	}

	i := s.indexOf(product.ID)
	if i < 0 {
		if quantity > product.Stock {
			s.sink.Notify(ctx, notify.QuantityCapped(product.Name, quantity, product.Stock))
		}
		s.items = append(s.items, LineItem{Product: product, Quantity: min(quantity, product.Stock)})
		s.sink.Notify(ctx, notify.ItemAdded(product.Name))
		s.commit(ctx)
		return
	}

	current := s.items[i].Quantity
	room := product.Stock - current
	switch {
	case room == 0:
		s.sink.Notify(ctx, notify.LimitedStock(product.Name, 0, product.Stock))
	case room < 0:
		// stock shrank below what is already in the cart
		s.items[i] = LineItem{Product: product, Quantity: product.Stock}
		s.sink.Notify(ctx, notify.LimitedStock(product.Name, 0, product.Stock))
		s.commit(ctx)
	default:
		added := min(quantity, room)
		if quantity > room {
			s.sink.Notify(ctx, notify.LimitedStock(product.Name, added, product.Stock))
		}
		s.items[i] = LineItem{Product: product, Quantity: current + added}
		s.sink.Notify(ctx, notify.ItemAdded(product.Name))
		s.commit(ctx)
	}
}

// Remove deletes the line item of productID. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, productID string) {
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	name := s.items[i].Product.Name
	s.items = slices.Delete(s.items, i, i+1)
	s.sink.Notify(ctx, notify.ItemRemoved(name))
	s.commit(ctx)
}

// SetQuantity sets the quantity of productID to quantity clamped to [1, stock].
// It never removes the line item. Unknown ids are ignored.
func (s *Store) SetQuantity(ctx context.Context, productID string, quantity int) {
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	item := &s.items[i]
	target := max(quantity, 1)
	if target > item.Product.Stock {
		s.sink.Notify(ctx, notify.QuantityCapped(item.Product.Name, quantity, item.Product.Stock))
		target = item.Product.Stock
	}
	item.Quantity = target
	s.commit(ctx)
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.items = nil
	s.sink.Notify(ctx, notify.CartCleared())
	s.commit(ctx)
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	return slices.Clone(s.items)
}

// Len returns the number of distinct products in the cart.
func (s *Store) Len() int {
	return len(s.items)
}

// Quantity returns the quantity of productID and whether it is in the cart.
func (s *Store) Quantity(productID string) (int, bool) {
	i := s.indexOf(productID)
	if i < 0 {
		return 0, false
	}
	return s.items[i].Quantity, true
}

// Subtotal is the sum of price times quantity over all line items.
func (s *Store) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range s.items {
		total = total.Add(li.Total())
	}
	return total
}

// ItemCount is the sum of quantities over all line items.
func (s *Store) ItemCount() int {
	count := 0
	for _, li := range s.items {
		count += li.Quantity
	}
	return count
}

// Flush writes the current state to the slot.
// An empty cart deletes the entry when the slot is a Deleter.
func (s *Store) Flush(ctx context.Context) error {
	if s.slot == nil {
		return nil
	}
	if d, ok := s.slot.(Deleter); ok && len(s.items) == 0 {
		return d.Delete(ctx)
	}
	data, err := EncodeSnapshot(s.items, s.now())
	if err != nil {
		return err
	}
	return s.slot.Save(ctx, data)
}

func (s *Store) commit(ctx context.Context) {
	if len(s.listeners) > 0 {
		items := s.Items()
		for _, l := range s.listeners {
			l(items)
		}
	}
	if err := s.Flush(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to persist cart", slog.Any("error", err))
	}
}
