package domain

import "time"

// Product is one catalog record as stored in the document store.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	InStock     bool      `json:"inStock"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProductPatch carries a partial product update. Nil fields are left untouched.
type ProductPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceCents  *int64  `json:"priceCents,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	InStock     *bool   `json:"inStock,omitempty"`
	Category    *string `json:"category,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
	Position    *int    `json:"position,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.PriceCents == nil && p.Currency == nil &&
		p.InStock == nil && p.Category == nil && p.ImageURL == nil && p.Position == nil
}

// Apply returns a copy of product with the patch applied.
func (p ProductPatch) Apply(product Product) Product {
	if p.Title != nil {
		product.Title = *p.Title
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.PriceCents != nil {
		product.PriceCents = *p.PriceCents
	}
	if p.Currency != nil {
		product.Currency = *p.Currency
	}
	if p.InStock != nil {
		product.InStock = *p.InStock
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.ImageURL != nil {
		product.ImageURL = *p.ImageURL
	}
	if p.Position != nil {
		product.Position = *p.Position
	}
	return product
}
