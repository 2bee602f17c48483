package checkout

import (
	"github.com/shopspring/decimal"
)

var (
	// ShippingFlat is charged once per non-empty order.
	ShippingFlat = decimal.RequireFromString("5.00")
	// TaxRate is the mock sales tax applied to the subtotal.
	TaxRate = decimal.RequireFromString("0.08")
)

type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grandTotal"`
}

// ComputeTotals derives shipping, tax (rounded to cents) and the grand total from a subtotal.
func ComputeTotals(subtotal decimal.Decimal) Totals {
	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = ShippingFlat
	}
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal:   subtotal,
		Shipping:   shipping,
		Tax:        tax,
		GrandTotal: subtotal.Add(shipping).Add(tax),
	}
}
