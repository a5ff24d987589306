package shipping

import (
	"context"

	"chocolate-storefront/internal/domain"
)

// Repository reads and writes the shipping settings singleton.
type Repository interface {
	Get(ctx context.Context) (domain.ShippingSettings, error)
	Put(ctx context.Context, s domain.ShippingSettings) error
}
