package checkout

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var ErrPaymentDeclined = errors.New("payment declined")

// ChargeRequest is what the gateway sees of a card payment.
type ChargeRequest struct {
	AmountCents int64
	Currency    string
	Card        CardInput
}

// Gateway authorises card payments and returns a reference for the later
// confirmation callback.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

// DeclineCardNumber is always declined by the simulated gateway.
const DeclineCardNumber = "4000000000000002"

// SimulatedGateway approves every card except DeclineCardNumber after Delay.
type SimulatedGateway struct {
	Delay time.Duration
}

func (g SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if normalizeCardNumber(req.Card.Number) == DeclineCardNumber {
		return "", ErrPaymentDeclined
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "sim_" + hex.EncodeToString(buf[:]), nil
}
