// Package catalog serves the read-only product catalog.
package catalog

import (
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Stock 0 means the product is unavailable.
type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ImageURL      string           `json:"imageUrl"`
	Category      string           `json:"category"`
	SubCategory   string           `json:"subCategory,omitempty"`
	Sizes         []string         `json:"sizes,omitempty"`
	Popularity    int              `json:"popularity"`
	Stock         int              `json:"stock"`

	// food attributes
	NetWeight           string            `json:"netWeight,omitempty"`
	Volume              string            `json:"volume,omitempty"`
	Ingredients         []string          `json:"ingredients,omitempty"`
	Allergens           []string          `json:"allergens,omitempty"`
	BestBefore          string            `json:"bestBefore,omitempty"`
	NutritionalInfo     map[string]string `json:"nutritionalInfo,omitempty"`
	StorageInstructions string            `json:"storageInstructions,omitempty"`
}

// InStock reports whether at least one unit can be sold.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Discounted reports whether the product carries a higher original price.
func (p Product) Discounted() bool {
	return p.OriginalPrice != nil && p.OriginalPrice.GreaterThan(p.Price)
}
