package shipping

import (
	"context"
	"errors"

	"chocolate-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Get(ctx context.Context) (domain.ShippingSettings, error) {
	const q = `
SELECT free_shipping_threshold_cents, flat_shipping_cost_cents, currency
FROM shipping_settings
WHERE id = 1
`
	var s domain.ShippingSettings
	if err := r.pool.QueryRow(ctx, q).Scan(&s.FreeShippingThresholdCents, &s.FlatShippingCostCents, &s.Currency); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ShippingSettings{}, domain.ErrNotFound
		}
		return domain.ShippingSettings{}, err
	}
	return s, nil
}

func (r *postgresRepo) Put(ctx context.Context, s domain.ShippingSettings) error {
	const q = `
INSERT INTO shipping_settings (id, free_shipping_threshold_cents, flat_shipping_cost_cents, currency, updated_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
    free_shipping_threshold_cents = EXCLUDED.free_shipping_threshold_cents,
    flat_shipping_cost_cents = EXCLUDED.flat_shipping_cost_cents,
    currency = EXCLUDED.currency,
    updated_at = now()
`
	_, err := r.pool.Exec(ctx, q, s.FreeShippingThresholdCents, s.FlatShippingCostCents, s.Currency)
	return err
}
