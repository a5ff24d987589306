package checkout

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
)

// State is the position of one checkout attempt.
type State string

const (
	StateDraft      State = "draft"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrAttemptClosed    = errors.New("checkout attempt already completed")
	ErrAttemptBusy      = errors.New("checkout attempt in progress")
	ErrOrderIDCollision = errors.New("order id collision")
)

type cartStore interface {
	Lines() []domain.CartLine
	Gift() domain.GiftPreferences
	UserID() string
	ClearOrdered(ctx context.Context, ordered []domain.CartLine)
}

type shippingSource interface {
	Shipping() domain.ShippingSettings
}

type orderRepo interface {
	Create(ctx context.Context, o domain.Order) error
}

// Tracker reports checkout conversions.
type Tracker interface {
	Report(ctx context.Context, name domain.EventName, value domain.ValueData) string
	Analytics(ctx context.Context, ev domain.AnalyticsEvent)
}

// Service starts checkout attempts.
type Service struct {
	orders   orderRepo
	shipping shippingSource
	gateway  Gateway
	prefix   string
	logger   *log.Logger
	now      func() time.Time
	random   io.Reader
}

type Config struct {
	OrderPrefix string
	Logger      *log.Logger
}

func New(orders orderRepo, shipping shippingSource, gateway Gateway, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	prefix := strings.TrimSpace(cfg.OrderPrefix)
	if prefix == "" {
		prefix = "CHOC"
	}
	if gateway == nil {
		gateway = SimulatedGateway{}
	}
	return &Service{
		orders:   orders,
		shipping: shipping,
		gateway:  gateway,
		prefix:   prefix,
		logger:   logger,
		now:      time.Now,
		random:   rand.Reader,
	}
}

// Attempt is one run of the checkout state machine. Succeeded is terminal;
// a failed submission may be retried.
type Attempt struct {
	svc     *Service
	cart    cartStore
	tracker Tracker

	mu                 sync.Mutex
	state              State
	order              *domain.Order
	initiateEventID    string
	purchaseEventID    string
	lastValidationErrs map[string]string
	chargeRef          string
	chargedCents       int64
}

// Begin opens an attempt for a non-empty cart and reports InitiateCheckout.
func (s *Service) Begin(ctx context.Context, cart cartStore, tracker Tracker) (*Attempt, error) {
	lines := cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	a := &Attempt{svc: s, cart: cart, tracker: tracker, state: StateDraft}
	totals := ComputeTotals(lines, s.shipping.Shipping())
	items := conversionItems(lines)
	a.initiateEventID = tracker.Report(ctx, domain.EventInitiateCheckout, domain.ValueData{
		Currency:    totals.Currency,
		AmountCents: totals.TotalCents,
		Items:       items,
	})
	tracker.Analytics(ctx, domain.AnalyticsEvent{
		Name:   "begin_checkout",
		Params: conversion.ItemParams(totals.Currency, totals.TotalCents, items),
	})
	return a, nil
}

func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Order returns the persisted order once the attempt succeeded.
func (a *Attempt) Order() *domain.Order {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.order
}

// EventIDs returns the InitiateCheckout and Purchase event ids.
func (a *Attempt) EventIDs() (initiate, purchase string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.initiateEventID, a.purchaseEventID
}

// FieldErrors returns the messages of the last failed validation.
func (a *Attempt) FieldErrors() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastValidationErrs
}

func (a *Attempt) setState(st State) {
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()
}

// Submit validates the form, persists the order, reports Purchase and clears
// the ordered lines, in that order. The cart is only cleared after the order
// is stored. A retry after a failed persist reuses the earlier card charge.
func (a *Attempt) Submit(ctx context.Context, in Input) (*domain.Order, error) {
	a.mu.Lock()
	switch a.state {
	case StateSucceeded:
		a.mu.Unlock()
		return nil, ErrAttemptClosed
	case StateValidating, StateSubmitting:
		a.mu.Unlock()
		return nil, ErrAttemptBusy
	}
	a.state = StateValidating
	a.mu.Unlock()

	lines := a.cart.Lines()
	if verr := validate(in, lines); verr != nil {
		a.mu.Lock()
		a.state = StateDraft
		a.lastValidationErrs = verr.Fields
		a.mu.Unlock()
		return nil, verr
	}

	a.mu.Lock()
	a.state = StateSubmitting
	a.lastValidationErrs = nil
	a.mu.Unlock()

	order, err := a.place(ctx, lines, in)
	if err != nil {
		a.setState(StateFailed)
		return nil, err
	}

	userData := domain.UserData{Email: order.Email, Phone: order.ShippingAddress.Phone}
	if order.UserID != nil {
		userData.ExternalID = *order.UserID
	}
	items := conversionItems(order.Lines)
	purchaseID := a.tracker.Report(conversion.WithUser(ctx, userData), domain.EventPurchase, domain.ValueData{
		Currency:    order.Totals.Currency,
		AmountCents: order.Totals.TotalCents,
		Items:       items,
		OrderID:     order.ID,
	})
	params := conversion.ItemParams(order.Totals.Currency, order.Totals.TotalCents, items)
	params["transaction_id"] = order.ID
	params["shipping"] = float64(order.Totals.ShippingCents) / 100
	a.tracker.Analytics(ctx, domain.AnalyticsEvent{Name: "purchase", Params: params})

	a.cart.ClearOrdered(ctx, order.Lines)

	a.mu.Lock()
	a.state = StateSucceeded
	a.order = order
	a.purchaseEventID = purchaseID
	a.mu.Unlock()
	return order, nil
}

func (a *Attempt) place(ctx context.Context, lines []domain.CartLine, in Input) (*domain.Order, error) {
	s := a.svc
	totals := ComputeTotals(lines, s.shipping.Shipping())
	order := domain.Order{
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Lines:           lines,
		Totals:          totals,
		PaymentMethod:   in.PaymentMethod,
		ShippingAddress: *in.Address,
		CreatedAt:       s.now().UTC(),
	}
	if gift := a.cart.Gift(); gift.IsGift {
		order.Gift = gift
	}
	if uid := a.cart.UserID(); uid != "" {
		order.UserID = &uid
	}

	switch in.PaymentMethod {
	case domain.PaymentCard:
		ref, err := a.charge(ctx, totals, *in.Card)
		if err != nil {
			return nil, err
		}
		order.PaymentStatus = domain.OrderPending
		order.PaymentReference = ref
	default:
		order.PaymentStatus = domain.OrderAwaitingTransfer
	}

	for i := 0; i < 5; i++ {
		id, err := s.mintOrderID()
		if err != nil {
			return nil, err
		}
		order.ID = id
		err = s.orders.Create(ctx, order)
		if err == nil {
			s.logger.Printf("checkout: order placed id=%s total=%d method=%s", order.ID, totals.TotalCents, order.PaymentMethod)
			return &order, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		s.logger.Printf("checkout: persist order failed error=%v", err)
		return nil, fmt.Errorf("persist order: %w", err)
	}
	return nil, ErrOrderIDCollision
}

// charge authorises the card once per amount. A retry of the same total gets
// the earlier reference back.
func (a *Attempt) charge(ctx context.Context, totals domain.OrderTotals, card CardInput) (string, error) {
	a.mu.Lock()
	ref, cents := a.chargeRef, a.chargedCents
	a.mu.Unlock()
	if ref != "" && cents == totals.TotalCents {
		a.svc.logger.Printf("checkout: reusing charge ref=%s amount=%d", ref, cents)
		return ref, nil
	}
	ref, err := a.svc.gateway.Charge(ctx, ChargeRequest{
		AmountCents: totals.TotalCents,
		Currency:    totals.Currency,
		Card:        card,
	})
	if err != nil {
		a.svc.logger.Printf("checkout: charge failed amount=%d error=%v", totals.TotalCents, err)
		return "", fmt.Errorf("charge card: %w", err)
	}
	a.mu.Lock()
	a.chargeRef = ref
	a.chargedCents = totals.TotalCents
	a.mu.Unlock()
	return ref, nil
}

// mintOrderID returns "<PREFIX>-<6 digits>".
func (s *Service) mintOrderID() (string, error) {
	n, err := rand.Int(s.random, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%06d", s.prefix, n.Int64()), nil
}

func conversionItems(lines []domain.CartLine) []domain.ConversionItem {
	items := make([]domain.ConversionItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.ConversionItem{
			ProductID:  l.ProductID,
			Quantity:   l.Quantity,
			PriceCents: l.UnitPriceCents,
		})
	}
	return items
}
