package order

import (
	"context"

	"chocolate-storefront/internal/domain"
)

// Repository persists orders. Orders are write-once from the storefront side.
type Repository interface {
	// Create stores a new order and returns domain.ErrAlreadyExists on id collision.
	Create(ctx context.Context, o domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// ConfirmPayment moves a pending or awaiting-transfer order to paid. Only the trusted payment callback calls it.
	ConfirmPayment(ctx context.Context, id, reference string) (*domain.Order, error)
}
