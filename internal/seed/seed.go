package seed

import (
	"context"
	"fmt"

	"chocolate-storefront/internal/domain"
)

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type shippingWriter interface {
	Put(ctx context.Context, s domain.ShippingSettings) error
}

// Catalog is the demo assortment. Prices are in kuruş.
var Catalog = []domain.Product{
	{
		Title:       "Signature Truffle Box",
		Description: "Twelve hand-rolled ganache truffles",
		PriceCents:  30000,
		Category:    "boxes",
		ImageURL:    "/images/truffle-box.jpg",
		Position:    1,
	},
	{
		Title:       "Dark Bar 72%",
		Description: "Single-origin dark chocolate bar",
		PriceCents:  8000,
		Category:    "bars",
		ImageURL:    "/images/dark-bar.jpg",
		Position:    2,
	},
	{
		Title:       "Pistachio Praline Bar",
		Description: "Milk chocolate with Antep pistachio praline",
		PriceCents:  9500,
		Category:    "bars",
		ImageURL:    "/images/pistachio-bar.jpg",
		Position:    3,
	},
	{
		Title:       "Hazelnut Dragées",
		Description: "Roasted hazelnuts in a crisp chocolate shell",
		PriceCents:  12000,
		Category:    "dragees",
		ImageURL:    "/images/hazelnut-dragees.jpg",
		Position:    4,
	},
	{
		Title:       "Grand Gift Hamper",
		Description: "Assorted bars, truffles and dragées in a keepsake box",
		PriceCents:  160000,
		Category:    "gifts",
		ImageURL:    "/images/gift-hamper.jpg",
		Position:    5,
	},
}

// Shipping is free from ₺1.500, otherwise ₺95.
var Shipping = domain.ShippingSettings{
	FreeShippingThresholdCents: 150000,
	FlatShippingCostCents:      9500,
	Currency:                   "TRY",
}

// Apply inserts the demo catalog and shipping settings. It is idempotent because
// products upsert by title.
func Apply(ctx context.Context, products productWriter, shipping shippingWriter) error {
	for _, p := range Catalog {
		p.Currency = "TRY"
		p.InStock = true
		if _, err := products.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert product %q: %w", p.Title, err)
		}
	}
	if err := shipping.Put(ctx, Shipping); err != nil {
		return fmt.Errorf("put shipping settings: %w", err)
	}
	return nil
}
