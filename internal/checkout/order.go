package checkout

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

type Order struct {
	ID       string          `json:"id"`
	Items    []cart.LineItem `json:"items"`
	Totals   Totals          `json:"totals"`
	Status   Status          `json:"status"`
	PlacedAt time.Time       `json:"orderDate"`
	Shipping ShippingAddress `json:"shipping"`
}

// History keeps the orders placed by each session.
type History interface {
	Append(ctx context.Context, sessionID string, order Order) error
	// List returns the orders of sessionID, newest first.
	List(ctx context.Context, sessionID string) ([]Order, error)
}

// MemoryHistory is an in-process History.
type MemoryHistory struct {
	mu     sync.RWMutex
	orders map[string][]Order
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{orders: make(map[string][]Order)}
}

func (h *MemoryHistory) Append(_ context.Context, sessionID string, order Order) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders[sessionID] = append(h.orders[sessionID], order)
	return nil
}

func (h *MemoryHistory) List(_ context.Context, sessionID string) ([]Order, error) {
	h.mu.RLock()
	orders := slices.Clone(h.orders[sessionID])
	h.mu.RUnlock()
	slices.SortStableFunc(orders, func(a, b Order) int { return b.PlacedAt.Compare(a.PlacedAt) })
	return orders, nil
}

// DemoOrders returns the sample order history shown to the demo customer.
func DemoOrders(products []catalog.Product, now time.Time) []Order {
	find := func(id string) (catalog.Product, bool) {
		i := slices.IndexFunc(products, func(p catalog.Product) bool { return p.ID == id })
		if i < 0 {
			return catalog.Product{}, false
		}
		return products[i], true
	}
	var orders []Order
	for _, o := range []struct {
		id        string
		productID string
		ago       time.Duration
		status    Status
	}{
		{id: "order_001", productID: "1", ago: 10 * 24 * time.Hour, status: StatusDelivered},
		{id: "order_002", productID: "2", ago: 2 * 24 * time.Hour, status: StatusShipped},
	} {
		p, ok := find(o.productID)
		if !ok {
			continue
		}
		orders = append(orders, Order{
			ID:       o.id,
			Items:    []cart.LineItem{{Product: p, Quantity: 1}},
			Totals:   Totals{Subtotal: p.Price, GrandTotal: p.Price},
			Status:   o.status,
			PlacedAt: now.Add(-o.ago),
		})
	}
	return orders
}
