package catalog

import (
	"context"
	"fmt"
	"slices"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps products in memory. It is safe for concurrent reads.
type MemoryStore struct {
	products []Product
	byID     map[string]int
}

// NewMemoryStore returns a store holding the given products. Later duplicates of an ID are ignored.
func NewMemoryStore(products []Product) *MemoryStore {
	s := &MemoryStore{byID: make(map[string]int, len(products))}
	for _, p := range products {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = len(s.products)
		s.products = append(s.products, p)
	}
	return s
}

func (s *MemoryStore) FindAll(_ context.Context) ([]Product, error) {
	return slices.Clone(s.products), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Product, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, perrors.ErrProductNotFound)
	}
	p := s.products[i]
	return &p, nil
}

const placeholderImage = "https://placehold.co/600x400.png"

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pricePtr(s string) *decimal.Decimal {
	d := price(s)
	return &d
}

// SeedProducts returns the demo catalog.
func SeedProducts() []Product {
	return []Product{
		{
			ID:            "1",
			Name:          "Elegant Rose Gold Watch",
			Description:   "A stunning timepiece with a minimalist design, featuring a rose gold plated case and a soft leather strap. Perfect for everyday elegance.",
			Price:         price("159.99"),
			OriginalPrice: pricePtr("199.99"),
			ImageURL:      placeholderImage,
			Category:      "Accessories",
			Popularity:    95,
			Stock:         10,
		},
		{
			ID:          "2",
			Name:        "Organic Cotton Scarf",
			Description: "Handwoven from 100% organic cotton, this scarf offers both warmth and style. Its muted olive color complements any outfit.",
			Price:       price("49.99"),
			ImageURL:    placeholderImage,
			Category:    "Apparel",
			Popularity:  88,
			Stock:       5,
		},
		{
			ID:          "3",
			Name:        "Artisan Ceramic Mug Set",
			Description: "Set of two handcrafted ceramic mugs, finished with a dusty rose glaze. Ideal for your morning coffee or tea.",
			Price:       price("35.00"),
			ImageURL:    placeholderImage,
			Category:    "Home Goods",
			Popularity:  92,
			Stock:       0,
		},
		{
			ID:            "4",
			Name:          "Leather Tote Bag",
			Description:   "A spacious and durable tote bag made from ethically sourced leather. Features an internal pocket and a secure magnetic clasp.",
			Price:         price("90.00"),
			OriginalPrice: pricePtr("120.00"),
			ImageURL:      placeholderImage,
			Category:      "Accessories",
			Popularity:    70,
			Stock:         15,
		},
		{
			ID:          "5",
			Name:        "Minimalist Desk Lamp",
			Description: "Sleek and modern LED desk lamp with adjustable brightness. Its off-white finish adds a touch of sophistication to your workspace.",
			Price:       price("75.50"),
			ImageURL:    placeholderImage,
			Category:    "Home Goods",
			Popularity:  85,
			Stock:       0,
		},
		{
			ID:          "6",
			Name:        "Silk Blend Blouse",
			Description: "A luxurious silk blend blouse in a flattering dusty rose shade. Features delicate button detailing and a relaxed fit.",
			Price:       price("89.00"),
			ImageURL:    placeholderImage,
			Category:    "Apparel",
			Popularity:  90,
			Stock:       8,
		},
	}
}
