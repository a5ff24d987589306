package domain

// ShippingSettings is the singleton shipping configuration edited by staff.
type ShippingSettings struct {
	FreeShippingThresholdCents int64  `json:"freeShippingThresholdCents"`
	FlatShippingCostCents      int64  `json:"flatShippingCostCents"`
	Currency                   string `json:"currency"`
}

// CostFor returns the shipping charge for a cart subtotal.
// Subtotals at or above the threshold ship free.
func (s ShippingSettings) CostFor(subtotalCents int64) int64 {
	if subtotalCents <= 0 {
		return 0
	}
	if s.FreeShippingThresholdCents > 0 && subtotalCents >= s.FreeShippingThresholdCents {
		return 0
	}
	return s.FlatShippingCostCents
}

// RemainingForFree returns how much more the customer has to spend to get free shipping.
func (s ShippingSettings) RemainingForFree(subtotalCents int64) int64 {
	if s.FreeShippingThresholdCents <= 0 {
		return 0
	}
	remaining := s.FreeShippingThresholdCents - subtotalCents
	if remaining < 0 {
		return 0
	}
	return remaining
}
