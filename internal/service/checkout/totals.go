package checkout

import "chocolate-storefront/internal/domain"

// ComputeTotals prices the lines against the live shipping settings.
// No promotion engine exists, so the discount is always zero.
func ComputeTotals(lines []domain.CartLine, shipping domain.ShippingSettings) domain.OrderTotals {
	subtotal := domain.CartTotal(lines)
	currency := shipping.Currency
	if len(lines) > 0 {
		currency = lines[0].Currency
	}
	cost := shipping.CostFor(subtotal)
	return domain.OrderTotals{
		SubtotalCents: subtotal,
		ShippingCents: cost,
		DiscountCents: 0,
		TotalCents:    subtotal + cost,
		Currency:      currency,
	}
}
