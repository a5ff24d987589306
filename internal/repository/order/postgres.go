package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"chocolate-storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, user_id::text, email, lines, subtotal_cents, shipping_cents, discount_cents, total_cents, currency,
       gift, payment_method, payment_status, payment_reference, shipping_address, created_at`

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

func (r *postgresRepo) Create(ctx context.Context, o domain.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}
	giftJSON, err := json.Marshal(o.Gift)
	if err != nil {
		return fmt.Errorf("encode gift: %w", err)
	}
	addrJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	const q = `
INSERT INTO orders (
    id, user_id, email, lines, subtotal_cents, shipping_cents, discount_cents, total_cents, currency,
    gift, payment_method, payment_status, payment_reference, shipping_address, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
`
	_, err = r.pool.Exec(ctx, q,
		o.ID,
		o.UserID,
		o.Email,
		linesJSON,
		o.Totals.SubtotalCents,
		o.Totals.ShippingCents,
		o.Totals.DiscountCents,
		o.Totals.TotalCents,
		o.Totals.Currency,
		giftJSON,
		string(o.PaymentMethod),
		string(o.PaymentStatus),
		o.PaymentReference,
		addrJSON,
		o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		r.logger.Printf("order repo: create id=%s error=%v", o.ID, err)
		return err
	}
	r.logger.Printf("order repo: created id=%s status=%s total=%d", o.ID, o.PaymentStatus, o.Totals.TotalCents)
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) ConfirmPayment(ctx context.Context, id, reference string) (*domain.Order, error) {
	q := `
UPDATE orders
SET payment_status = 'paid',
    payment_reference = COALESCE(NULLIF($2, ''), payment_reference),
    paid_at = now()
WHERE id = $1 AND payment_status IN ('pending', 'awaiting_transfer')
RETURNING ` + orderColumns
	o, err := r.scanOrder(r.pool.QueryRow(ctx, q, id, reference))
	if errors.Is(err, domain.ErrNotFound) {
		// Distinguish a missing order from one that is already paid.
		if _, getErr := r.GetByID(ctx, id); getErr == nil {
			return nil, domain.ErrConflict
		}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.logger.Printf("order repo: confirmed payment id=%s", id)
	return o, nil
}

func (r *postgresRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o                             domain.Order
		method, status                string
		linesJSON, giftJSON, addrJSON []byte
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Email,
		&linesJSON,
		&o.Totals.SubtotalCents,
		&o.Totals.ShippingCents,
		&o.Totals.DiscountCents,
		&o.Totals.TotalCents,
		&o.Totals.Currency,
		&giftJSON,
		&method,
		&status,
		&o.PaymentReference,
		&addrJSON,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: scan error=%v", err)
		return nil, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.OrderStatus(status)
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("decode lines id=%s: %w", o.ID, err)
	}
	if err := json.Unmarshal(giftJSON, &o.Gift); err != nil {
		return nil, fmt.Errorf("decode gift id=%s: %w", o.ID, err)
	}
	if err := json.Unmarshal(addrJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode address id=%s: %w", o.ID, err)
	}
	return &o, nil
}
