package catalog

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, description, price::text, original_price::text, image_url, category,
	sub_category, sizes, popularity, stock, net_weight, volume, ingredients, allergens, best_before,
	nutritional_info, storage_instructions`

// PgStore implements Store using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of Store using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// FindAll returns all products ordered by id.
func (p *PgStore) FindAll(ctx context.Context) ([]Product, error) {
	rows, err := p.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find all products: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

// FindByID returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id string) (*Product, error) {
	rows, err := p.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	product, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, perrors.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &product, nil
}

// Seed upserts the given products in one batch.
func (p *PgStore) Seed(ctx context.Context, products []Product) error {
	batch := &pgx.Batch{}
	for _, pr := range products {
		var original *string
		if pr.OriginalPrice != nil {
			s := pr.OriginalPrice.String()
			original = &s
		}
		batch.Queue(`INSERT INTO products (id, name, description, price, original_price, image_url, category,
				sub_category, sizes, popularity, stock, net_weight, volume, ingredients, allergens, best_before,
				nutritional_info, storage_instructions)
			VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
				original_price = EXCLUDED.original_price, image_url = EXCLUDED.image_url,
				category = EXCLUDED.category, sub_category = EXCLUDED.sub_category, sizes = EXCLUDED.sizes,
				popularity = EXCLUDED.popularity, stock = EXCLUDED.stock, net_weight = EXCLUDED.net_weight,
				volume = EXCLUDED.volume, ingredients = EXCLUDED.ingredients, allergens = EXCLUDED.allergens,
				best_before = EXCLUDED.best_before, nutritional_info = EXCLUDED.nutritional_info,
				storage_instructions = EXCLUDED.storage_instructions`,
			pr.ID, pr.Name, pr.Description, pr.Price.String(), original, pr.ImageURL, pr.Category,
			nullable(pr.SubCategory), pr.Sizes, pr.Popularity, pr.Stock, nullable(pr.NetWeight),
			nullable(pr.Volume), pr.Ingredients, pr.Allergens, nullable(pr.BestBefore), pr.NutritionalInfo,
			nullable(pr.StorageInstructions))
	}
	if err := p.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (Product, error) {
	var (
		pr                                         Product
		price                                      string
		original                                   *string
		subCategory, netWeight, volume, bestBefore *string
		storage                                    *string
	)
	err := row.Scan(&pr.ID, &pr.Name, &pr.Description, &price, &original, &pr.ImageURL, &pr.Category,
		&subCategory, &pr.Sizes, &pr.Popularity, &pr.Stock, &netWeight, &volume, &pr.Ingredients,
		&pr.Allergens, &bestBefore, &pr.NutritionalInfo, &storage)
	if err != nil {
		return Product{}, err
	}
	if pr.Price, err = decimal.NewFromString(price); err != nil {
		return Product{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	if original != nil {
		d, err := decimal.NewFromString(*original)
		if err != nil {
			return Product{}, fmt.Errorf("invalid original price %q: %w", *original, err)
		}
		pr.OriginalPrice = &d
	}
	pr.SubCategory = deref(subCategory)
	pr.NetWeight = deref(netWeight)
	pr.Volume = deref(volume)
	pr.BestBefore = deref(bestBefore)
	pr.StorageInstructions = deref(storage)
	return pr, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
