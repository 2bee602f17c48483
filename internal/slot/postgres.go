package slot

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores snapshots in the cart_snapshots table.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(dbp *pgxpool.Pool) *Postgres {
	return &Postgres{db: dbp}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := p.db.QueryRow(ctx, `SELECT data FROM cart_snapshots WHERE key = $1`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("key %s: %w", key, perrors.ErrSlotEmpty)
		}
		return nil, fmt.Errorf("failed to read cart snapshot: %w", err)
	}
	return data, nil
}

func (p *Postgres) Put(ctx context.Context, key string, data []byte) error {
	_, err := p.db.Exec(ctx, `INSERT INTO cart_snapshots (key, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`, key, data)
	if err != nil {
		return fmt.Errorf("failed to write cart snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM cart_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete cart snapshot: %w", err)
	}
	return nil
}
