package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
)

// SortKey orders product listings.
type SortKey string

const (
	SortPopularity SortKey = "popularity"
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortNameAsc    SortKey = "name-asc"
	SortNameDesc   SortKey = "name-desc"
)

// DefaultRecommendations is the number of recommendations returned when no limit is given.
const DefaultRecommendations = 3

// ParseSort maps a query value to a SortKey. An empty value selects popularity.
func ParseSort(s string) (SortKey, bool) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return SortPopularity, true
	case SortPopularity, SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return k, true
	default:
		return "", false
	}
}

// Query filters and orders a product listing. Zero value lists everything by popularity.
type Query struct {
	Search   string
	Category string
	Sort     SortKey
}

// Service answers catalog queries on top of a Store.
type Service struct {
	store Store
}

// NewService creates a new instance of Service with the provided store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// FindByID returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindByID(ctx context.Context, id string) (*Product, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return p, nil
}

// List returns the products matching q. Search is a case-insensitive substring match on name,
// description and category; Category is a case-insensitive exact match. Sorting is stable.
func (s *Service) List(ctx context.Context, q Query) ([]Product, error) {
	products, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	category := strings.TrimSpace(q.Category)
	products = slices.DeleteFunc(products, func(p Product) bool {
		if category != "" && !strings.EqualFold(p.Category, category) {
			return true
		}
		return term != "" && !matches(p, term)
	})
	slices.SortStableFunc(products, comparator(q.Sort))
	return products, nil
}

// Categories returns the distinct category names sorted alphabetically.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	products, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	seen := make(map[string]struct{})
	var categories []string
	for _, p := range products {
		key := strings.ToLower(p.Category)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		categories = append(categories, p.Category)
	}
	slices.Sort(categories)
	return categories, nil
}

// Recommend returns up to limit products other than id: same-category products first,
// then the rest, each group by popularity descending.
// Returns ErrProductNotFound if id is unknown.
func (s *Service) Recommend(ctx context.Context, id string, limit int) ([]Product, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecommendations
	}
	products, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	products = slices.DeleteFunc(products, func(p Product) bool { return p.ID == current.ID })
	slices.SortStableFunc(products, func(a, b Product) int {
		sameA := strings.EqualFold(a.Category, current.Category)
		sameB := strings.EqualFold(b.Category, current.Category)
		if sameA != sameB {
			if sameA {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.Popularity, a.Popularity)
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func matches(p Product, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.Category), term)
}

func comparator(key SortKey) func(a, b Product) int {
	switch key {
	case SortPriceAsc:
		return func(a, b Product) int { return a.Price.Cmp(b.Price) }
	case SortPriceDesc:
		return func(a, b Product) int { return b.Price.Cmp(a.Price) }
	case SortNameAsc:
		return func(a, b Product) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case SortNameDesc:
		return func(a, b Product) int { return cmp.Compare(strings.ToLower(b.Name), strings.ToLower(a.Name)) }
	default:
		return func(a, b Product) int { return cmp.Compare(b.Popularity, a.Popularity) }
	}
}
