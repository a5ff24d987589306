package favorite

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.pool.QueryRow(ctx, `SELECT product_ids FROM favorites WHERE user_id = $1`, userID).Scan(&ids)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []string{}, nil
		}
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (r *postgresRepo) Put(ctx context.Context, userID string, productIDs []string) error {
	if productIDs == nil {
		productIDs = []string{}
	}
	const q = `
INSERT INTO favorites (user_id, product_ids, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET product_ids = EXCLUDED.product_ids, updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, userID, productIDs)
	return err
}
