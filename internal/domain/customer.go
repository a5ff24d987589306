package domain

import "time"

// Customer represents a registered shopper.
type Customer struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Addresses    []Address `json:"addresses,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AddressByID returns the saved address with the given id.
func (c Customer) AddressByID(id string) (Address, bool) {
	for _, a := range c.Addresses {
		if a.ID == id {
			return a, true
		}
	}
	return Address{}, false
}
