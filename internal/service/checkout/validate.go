package checkout

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"chocolate-storefront/internal/domain"
)

var (
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvPattern    = regexp.MustCompile(`^[0-9]{3}$`)
	cardPattern   = regexp.MustCompile(`^[0-9]{16}$`)
)

// ValidationError carries field-scoped messages. It never reaches the network.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// CardInput holds the card form as typed.
type CardInput struct {
	Holder string `json:"holder"`
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

// Input is one checkout submission.
type Input struct {
	Email         string               `json:"email"`
	Address       *domain.Address      `json:"address,omitempty"`
	AcceptTerms   bool                 `json:"acceptTerms"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Card          *CardInput           `json:"card,omitempty"`
}

// Format checks only; card numbers get no checksum test.
func validate(in Input, lines []domain.CartLine) *ValidationError {
	fields := make(map[string]string)
	if len(lines) == 0 {
		fields["cart"] = "cart is empty"
	}
	email := strings.TrimSpace(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "a valid email is required"
	}
	if in.Address == nil {
		fields["address"] = "select a shipping address"
	}
	if !in.AcceptTerms {
		fields["terms"] = "you must accept the terms"
	}
	switch in.PaymentMethod {
	case domain.PaymentCard:
		card := in.Card
		if card == nil {
			card = &CardInput{}
		}
		if !cardPattern.MatchString(normalizeCardNumber(card.Number)) {
			fields["card.number"] = "card number must be 16 digits"
		}
		if !expiryPattern.MatchString(strings.TrimSpace(card.Expiry)) {
			fields["card.expiry"] = "expiry must be MM/YY"
		}
		if !cvvPattern.MatchString(strings.TrimSpace(card.CVV)) {
			fields["card.cvv"] = "cvv must be 3 digits"
		}
	case domain.PaymentTransfer:
	default:
		fields["paymentMethod"] = "choose card or transfer"
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func normalizeCardNumber(n string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(n)
}
