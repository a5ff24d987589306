package domain

// ProductSnapshot is the denormalised product data captured when a line is added.
type ProductSnapshot struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
	Category string `json:"category,omitempty"`
}

// CartLine is one product in the cart. Lines are unique by ProductID and
// always carry Quantity >= 1.
type CartLine struct {
	ProductID      string          `json:"productId"`
	UnitPriceCents int64           `json:"unitPriceCents"`
	Currency       string          `json:"currency"`
	Quantity       int             `json:"quantity"`
	Snapshot       ProductSnapshot `json:"snapshot"`
}

// TotalCents is the line price times quantity.
func (l CartLine) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// GiftPreferences holds the gift wrapping options of the open cart.
type GiftPreferences struct {
	IsGift      bool   `json:"isGift"`
	Message     string `json:"giftMessage"`
	HideInvoice bool   `json:"hideInvoice"`
}

// CartCount sums line quantities.
func CartCount(lines []CartLine) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// CartTotal sums price times quantity over all lines.
func CartTotal(lines []CartLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.TotalCents()
	}
	return total
}
