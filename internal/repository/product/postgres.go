package product

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"chocolate-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id::text, title, COALESCE(description, ''), price_cents, currency, in_stock, category, image_url, position, created_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) ListOrdered(ctx context.Context) ([]domain.Product, error) {
	q := `SELECT ` + productColumns + `
FROM products
ORDER BY position ASC, created_at ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Printf("product repo: list error=%v", err)
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Printf("product repo: list rows error=%v", err)
		return nil, err
	}
	r.logger.Printf("product repo: list count=%d", len(result))
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := `SELECT ` + productColumns + `
FROM products
WHERE id = $1
`
	p, err := scanProduct(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Printf("product repo: get id=%s not found", id)
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	q := `
UPDATE products SET
    title       = COALESCE($2, title),
    description = COALESCE($3, description),
    price_cents = COALESCE($4, price_cents),
    currency    = COALESCE($5, currency),
    in_stock    = COALESCE($6, in_stock),
    category    = COALESCE($7, category),
    image_url   = COALESCE($8, image_url),
    position    = COALESCE($9, position)
WHERE id = $1
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		id,
		patch.Title,
		patch.Description,
		patch.PriceCents,
		patch.Currency,
		patch.InStock,
		patch.Category,
		patch.ImageURL,
		patch.Position,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: update id=%s error=%v", id, err)
		return nil, err
	}
	r.logger.Printf("product repo: updated id=%s", id)
	return p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, product domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (id, title, description, price_cents, currency, in_stock, category, image_url, position)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
ON CONFLICT (title) DO UPDATE SET
    description = EXCLUDED.description,
    price_cents = EXCLUDED.price_cents,
    currency    = EXCLUDED.currency,
    in_stock    = EXCLUDED.in_stock,
    category    = EXCLUDED.category,
    image_url   = EXCLUDED.image_url,
    position    = EXCLUDED.position
RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, q,
		product.ID,
		product.Title,
		product.Description,
		product.PriceCents,
		product.Currency,
		product.InStock,
		product.Category,
		product.ImageURL,
		product.Position,
	))
	if err != nil {
		r.logger.Printf("product repo: upsert title=%q error=%v", product.Title, err)
		return nil, err
	}
	if product.ID != "" && p.ID != product.ID {
		return nil, fmt.Errorf("product repo: id mismatch for title=%q existing_id=%s import_id=%s", product.Title, p.ID, product.ID)
	}
	r.logger.Printf("product repo: upserted title=%q id=%s", p.Title, p.ID)
	return p, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.PriceCents, &p.Currency, &p.InStock, &p.Category, &p.ImageURL, &p.Position, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
