package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderLine struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedEvent struct {
	OrderID    uuid.UUID       `json:"order_id"`
	SessionID  string          `json:"session_id"`
	Items      []OrderLine     `json:"items"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	PlacedAt   time.Time       `json:"placed_at"`

	// Carrier holds the trace context of the publisher.
	Carrier map[string]string `json:"carrier,omitempty"`
}

func (o OrderPlacedEvent) Subject() string {
	return messaging.OrdersPlacedSubject
}

func (o OrderPlacedEvent) Payload() ([]byte, error) {
	return json.Marshal(o)
}
