package domain

import "time"

// PaymentMethod selects how the order is paid.
type PaymentMethod string

const (
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

// OrderStatus tracks payment progress. The client only ever writes the initial status.
type OrderStatus string

const (
	OrderPending          OrderStatus = "pending"
	OrderAwaitingTransfer OrderStatus = "awaiting_transfer"
	OrderPaid             OrderStatus = "paid"
)

// Address is a shipping address chosen at checkout.
type Address struct {
	ID         string `json:"id,omitempty"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

// OrderTotals are computed once at submission and frozen on the order.
type OrderTotals struct {
	SubtotalCents int64  `json:"subtotalCents"`
	ShippingCents int64  `json:"shippingCents"`
	DiscountCents int64  `json:"discountCents"`
	TotalCents    int64  `json:"totalCents"`
	Currency      string `json:"currency"`
}

// Order is written once by checkout and amended only by payment confirmation.
type Order struct {
	ID               string          `json:"id"`
	UserID           *string         `json:"userId,omitempty"`
	Email            string          `json:"email"`
	Lines            []CartLine      `json:"lines"`
	Totals           OrderTotals     `json:"totals"`
	Gift             GiftPreferences `json:"gift"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    OrderStatus     `json:"paymentStatus"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	ShippingAddress  Address         `json:"shippingAddress"`
	CreatedAt        time.Time       `json:"createdAt"`
}
