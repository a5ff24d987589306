package checkout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"chocolate-storefront/internal/domain"
)

type stubCart struct {
	lines   []domain.CartLine
	gift    domain.GiftPreferences
	userID  string
	cleared int
}

func (c *stubCart) Lines() []domain.CartLine     { return append([]domain.CartLine(nil), c.lines...) }
func (c *stubCart) Gift() domain.GiftPreferences { return c.gift }
func (c *stubCart) UserID() string               { return c.userID }
func (c *stubCart) ClearOrdered(_ context.Context, ordered []domain.CartLine) {
	c.cleared++
	take := make(map[string]int)
	for _, l := range ordered {
		take[l.ProductID] += l.Quantity
	}
	var kept []domain.CartLine
	for _, l := range c.lines {
		if l.Quantity -= take[l.ProductID]; l.Quantity > 0 {
			kept = append(kept, l)
		}
	}
	c.lines = kept
	c.gift = domain.GiftPreferences{}
}

type stubShipping struct{ settings domain.ShippingSettings }

func (s stubShipping) Shipping() domain.ShippingSettings { return s.settings }

type stubOrders struct {
	errs    []error
	calls   int
	created []domain.Order
}

func (r *stubOrders) Create(_ context.Context, o domain.Order) error {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		if len(r.errs) > 1 {
			r.errs = r.errs[1:]
		}
		if err != nil {
			return err
		}
	}
	r.created = append(r.created, o)
	return nil
}

type report struct {
	id    string
	name  domain.EventName
	value domain.ValueData
}

type stubTracker struct {
	reports   []report
	analytics []domain.AnalyticsEvent
}

func (t *stubTracker) Report(_ context.Context, name domain.EventName, value domain.ValueData) string {
	id := fmt.Sprintf("evt-%d", len(t.reports)+1)
	t.reports = append(t.reports, report{id: id, name: name, value: value})
	return id
}

func (t *stubTracker) Analytics(_ context.Context, ev domain.AnalyticsEvent) {
	t.analytics = append(t.analytics, ev)
}

func (t *stubTracker) count(name domain.EventName) int {
	n := 0
	for _, r := range t.reports {
		if r.name == name {
			n++
		}
	}
	return n
}

type stubGateway struct {
	err   error
	calls int
}

func (g *stubGateway) Charge(context.Context, ChargeRequest) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return "ref-1", nil
}

var liveShipping = domain.ShippingSettings{FreeShippingThresholdCents: 150000, FlatShippingCostCents: 9500, Currency: "TRY"}

func cartOf(totalCents int64) *stubCart {
	return &stubCart{lines: []domain.CartLine{{ProductID: "p1", UnitPriceCents: totalCents, Currency: "TRY", Quantity: 1}}}
}

func cardInput() Input {
	return Input{
		Email:         "buyer@example.com",
		Address:       &domain.Address{FullName: "Ayşe Yılmaz", Phone: "05321234567", Line1: "Bağdat Cd. 12", City: "İstanbul"},
		AcceptTerms:   true,
		PaymentMethod: domain.PaymentCard,
		Card:          &CardInput{Number: "4242 4242 4242 4242", Expiry: "12/29", CVV: "123"},
	}
}

func TestComputeTotals(t *testing.T) {
	got := ComputeTotals(cartOf(30000).lines, liveShipping)
	if got.ShippingCents != 9500 || got.TotalCents != 39500 {
		t.Fatalf("₺300 cart: %+v", got)
	}
	got = ComputeTotals(cartOf(160000).lines, liveShipping)
	if got.ShippingCents != 0 || got.TotalCents != 160000 {
		t.Fatalf("₺1600 cart: %+v", got)
	}
	if got.DiscountCents != 0 {
		t.Fatalf("unexpected discount")
	}
}

func TestSubmitSucceeds(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{}
	gateway := &stubGateway{}
	svc := New(orders, stubShipping{liveShipping}, gateway, Config{})
	cart := cartOf(30000)
	cart.gift = domain.GiftPreferences{IsGift: true, Message: "İyi ki doğdun"}
	tracker := &stubTracker{}

	attempt, err := svc.Begin(ctx, cart, tracker)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	order, err := attempt.Submit(ctx, cardInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !regexp.MustCompile(`^CHOC-[0-9]{6}$`).MatchString(order.ID) {
		t.Fatalf("unexpected order id %q", order.ID)
	}
	if order.PaymentStatus != domain.OrderPending || order.PaymentReference != "ref-1" {
		t.Fatalf("unexpected payment state %+v", order)
	}
	if order.Totals.TotalCents != 39500 || order.Gift.Message != "İyi ki doğdun" {
		t.Fatalf("unexpected order %+v", order)
	}
	if cart.cleared != 1 || len(cart.lines) != 0 {
		t.Fatalf("cart not cleared")
	}
	if tracker.count(domain.EventPurchase) != 1 {
		t.Fatalf("expected exactly one Purchase, got %d", tracker.count(domain.EventPurchase))
	}
	purchase := tracker.reports[len(tracker.reports)-1]
	if purchase.value.OrderID != order.ID || purchase.value.AmountCents != 39500 {
		t.Fatalf("purchase payload %+v", purchase.value)
	}
	initiate, purchaseID := attempt.EventIDs()
	if initiate == "" || initiate == purchaseID {
		t.Fatalf("purchase must use a fresh event id: %q vs %q", initiate, purchaseID)
	}
	if attempt.State() != StateSucceeded {
		t.Fatalf("state %s", attempt.State())
	}
	if _, err := attempt.Submit(ctx, cardInput()); !errors.Is(err, ErrAttemptClosed) {
		t.Fatalf("expected closed attempt, got %v", err)
	}
}

func TestSubmitPersistenceFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{errs: []error{errors.New("unavailable"), nil}}
	gateway := &stubGateway{}
	svc := New(orders, stubShipping{liveShipping}, gateway, Config{})
	cart := cartOf(30000)
	tracker := &stubTracker{}

	attempt, _ := svc.Begin(ctx, cart, tracker)
	if _, err := attempt.Submit(ctx, cardInput()); err == nil {
		t.Fatalf("expected persistence error")
	}
	if len(cart.lines) == 0 || cart.cleared != 0 {
		t.Fatalf("cart must stay intact")
	}
	if tracker.count(domain.EventPurchase) != 0 {
		t.Fatalf("no Purchase on failure")
	}
	if attempt.State() != StateFailed {
		t.Fatalf("state %s", attempt.State())
	}

	if _, err := attempt.Submit(ctx, cardInput()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tracker.count(domain.EventPurchase) != 1 || cart.cleared != 1 {
		t.Fatalf("retry should complete the checkout")
	}
	if gateway.calls != 1 {
		t.Fatalf("retry charged the card again: calls=%d", gateway.calls)
	}
	if got := orders.created[0].PaymentReference; got != "ref-1" {
		t.Fatalf("order should carry the first charge, got %q", got)
	}
}

type addingOrders struct {
	stubOrders
	onCreate func()
}

func (r *addingOrders) Create(ctx context.Context, o domain.Order) error {
	if r.onCreate != nil {
		r.onCreate()
	}
	return r.stubOrders.Create(ctx, o)
}

func TestSubmitKeepsLinesAddedDuringSubmission(t *testing.T) {
	ctx := context.Background()
	cart := cartOf(30000)
	orders := &addingOrders{onCreate: func() {
		cart.lines = append(cart.lines, domain.CartLine{ProductID: "p2", UnitPriceCents: 5000, Currency: "TRY", Quantity: 1})
	}}
	svc := New(orders, stubShipping{liveShipping}, &stubGateway{}, Config{})

	attempt, _ := svc.Begin(ctx, cart, &stubTracker{})
	order, err := attempt.Submit(ctx, cardInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].ProductID != "p1" {
		t.Fatalf("order lines %+v", order.Lines)
	}
	if len(cart.lines) != 1 || cart.lines[0].ProductID != "p2" {
		t.Fatalf("line added mid-checkout should remain, got %+v", cart.lines)
	}
}

func TestSubmitValidationReturnsToDraft(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{}
	gateway := &stubGateway{}
	svc := New(orders, stubShipping{liveShipping}, gateway, Config{})
	attempt, _ := svc.Begin(ctx, cartOf(30000), &stubTracker{})

	in := cardInput()
	in.Address = nil
	in.AcceptTerms = false
	in.Card = &CardInput{Number: "4242", Expiry: "13/29", CVV: "12"}

	_, err := attempt.Submit(ctx, in)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"address", "terms", "card.number", "card.expiry", "card.cvv"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("missing field error %s in %v", field, verr.Fields)
		}
	}
	if attempt.State() != StateDraft {
		t.Fatalf("state %s", attempt.State())
	}
	if orders.calls != 0 || gateway.calls != 0 {
		t.Fatalf("validation failure reached the network")
	}
}

func TestSubmitTransfer(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{}
	gateway := &stubGateway{}
	svc := New(orders, stubShipping{liveShipping}, gateway, Config{OrderPrefix: "ART"})
	attempt, _ := svc.Begin(ctx, cartOf(160000), &stubTracker{})

	in := cardInput()
	in.PaymentMethod = domain.PaymentTransfer
	in.Card = nil
	order, err := attempt.Submit(ctx, in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if order.PaymentStatus != domain.OrderAwaitingTransfer || gateway.calls != 0 {
		t.Fatalf("transfer should not charge: %+v", order)
	}
	if order.Totals.ShippingCents != 0 {
		t.Fatalf("free shipping expected")
	}
	if !regexp.MustCompile(`^ART-[0-9]{6}$`).MatchString(order.ID) {
		t.Fatalf("unexpected order id %q", order.ID)
	}
}

func TestSubmitDeclinedCard(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{}
	svc := New(orders, stubShipping{liveShipping}, SimulatedGateway{}, Config{})
	cart := cartOf(30000)
	tracker := &stubTracker{}
	attempt, _ := svc.Begin(ctx, cart, tracker)

	in := cardInput()
	in.Card.Number = DeclineCardNumber
	if _, err := attempt.Submit(ctx, in); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected decline, got %v", err)
	}
	if orders.calls != 0 || len(cart.lines) == 0 || tracker.count(domain.EventPurchase) != 0 {
		t.Fatalf("declined payment must not place the order")
	}
}

func TestOrderIDCollisionRetries(t *testing.T) {
	ctx := context.Background()
	orders := &stubOrders{errs: []error{domain.ErrAlreadyExists, domain.ErrAlreadyExists, nil}}
	svc := New(orders, stubShipping{liveShipping}, &stubGateway{}, Config{})
	attempt, _ := svc.Begin(ctx, cartOf(30000), &stubTracker{})

	if _, err := attempt.Submit(ctx, cardInput()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if orders.calls != 3 {
		t.Fatalf("expected 3 create attempts, got %d", orders.calls)
	}

	always := &stubOrders{errs: []error{domain.ErrAlreadyExists}}
	svc = New(always, stubShipping{liveShipping}, &stubGateway{}, Config{})
	attempt, _ = svc.Begin(ctx, cartOf(30000), &stubTracker{})
	if _, err := attempt.Submit(ctx, cardInput()); !errors.Is(err, ErrOrderIDCollision) {
		t.Fatalf("expected collision error, got %v", err)
	}
}

func TestBeginRequiresItems(t *testing.T) {
	svc := New(&stubOrders{}, stubShipping{liveShipping}, nil, Config{})
	tracker := &stubTracker{}
	if _, err := svc.Begin(context.Background(), &stubCart{}, tracker); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if len(tracker.reports) != 0 {
		t.Fatalf("no InitiateCheckout for empty cart")
	}
}
