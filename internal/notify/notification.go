// Package notify delivers user-facing cart notifications.
package notify

import (
	"context"
	"fmt"
)

type Kind string

const (
	KindItemAdded    Kind = "item_added"
	KindItemRemoved  Kind = "item_removed"
	KindCartCleared  Kind = "cart_cleared"
	KindLimitedStock Kind = "limited_stock"
	KindOutOfStock   Kind = "out_of_stock"
)

type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityWarning     Severity = "warning"
	SeverityDestructive Severity = "destructive"
)

// Notification is a short user-facing message produced by a cart mutation.
type Notification struct {
	Kind        Kind     `json:"kind"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// Sink receives notifications. Implementations must not block for long:
// they are called while the cart of the session is locked.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

func ItemAdded(name string) Notification {
	return Notification{
		Kind:        KindItemAdded,
		Title:       "Item added to cart",
		Description: fmt.Sprintf("%s successfully added.", name),
		Severity:    SeverityInfo,
	}
}

func ItemRemoved(name string) Notification {
	return Notification{
		Kind:        KindItemRemoved,
		Title:       "Item removed from cart",
		Description: fmt.Sprintf("%s removed.", name),
		Severity:    SeverityDestructive,
	}
}

func CartCleared() Notification {
	return Notification{
		Kind:        KindCartCleared,
		Title:       "Cart cleared",
		Description: "All items have been removed from your cart.",
		Severity:    SeverityInfo,
	}
}

// LimitedStock reports that only added more units of name could be added, stock being the ceiling.
func LimitedStock(name string, added, stock int) Notification {
	var desc string
	if added == 0 {
		desc = fmt.Sprintf("No more %s can be added: all %d in stock are already in your cart.", name, stock)
	} else {
		desc = fmt.Sprintf("Only %d more %s could be added (%d in stock).", added, name, stock)
	}
	return Notification{
		Kind:        KindLimitedStock,
		Title:       "Limited stock",
		Description: desc,
		Severity:    SeverityWarning,
	}
}

// QuantityCapped reports that a requested quantity was reduced to the stock ceiling.
func QuantityCapped(name string, requested, stock int) Notification {
	return Notification{
		Kind:        KindLimitedStock,
		Title:       "Limited stock",
		Description: fmt.Sprintf("Only %d of %s available, %d requested.", stock, name, requested),
		Severity:    SeverityWarning,
	}
}

func OutOfStock(name string) Notification {
	return Notification{
		Kind:        KindOutOfStock,
		Title:       "Out of stock",
		Description: fmt.Sprintf("%s is currently unavailable.", name),
		Severity:    SeverityWarning,
	}
}
