package product

import (
	"context"

	"chocolate-storefront/internal/domain"
)

// Repository reads and writes the product collection.
type Repository interface {
	ListOrdered(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}
