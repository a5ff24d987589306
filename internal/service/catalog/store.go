package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"chocolate-storefront/internal/docstore"
	"chocolate-storefront/internal/domain"
)

type productWriter interface {
	Update(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, h docstore.Handler) (func(), error)
}

// ErrInvalidPatch rejects a patch before anything is applied.
var ErrInvalidPatch = errors.New("invalid product patch")

// Notifier receives every catalog change and the user-visible failure signals.
type Notifier interface {
	ProductsChanged(products []domain.Product)
	ShippingChanged(settings domain.ShippingSettings)
	SyncLost(err error)
	MutationFailed(productID string, err error)
}

// Store keeps the live product list and shipping settings. Admin edits are
// applied optimistically and rolled back to the exact prior list on failure.
type Store struct {
	repo     productWriter
	sub      subscriber
	notifier Notifier
	logger   *log.Logger

	mu          sync.RWMutex
	products    []domain.Product
	shipping    domain.ShippingSettings
	stale       bool
	unsubscribe func()
}

func New(repo productWriter, sub subscriber, notifier Notifier, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Store{repo: repo, sub: sub, notifier: notifier, logger: logger}
}

// Start opens the standing subscription. It returns after the first snapshot
// has been delivered.
func (s *Store) Start(ctx context.Context) error {
	unsubscribe, err := s.sub.Subscribe(ctx, docstore.Handler{
		OnProducts: s.applyProducts,
		OnShipping: s.applyShipping,
		OnError:    s.markStale,
	})
	if err != nil {
		return fmt.Errorf("subscribe catalog: %w", err)
	}
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

// Close tears down the subscription.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Store) applyProducts(products []domain.Product) {
	s.mu.Lock()
	s.products = products
	s.stale = false
	s.mu.Unlock()
	s.notifier.ProductsChanged(products)
}

func (s *Store) applyShipping(settings domain.ShippingSettings) {
	s.mu.Lock()
	s.shipping = settings
	s.stale = false
	s.mu.Unlock()
	s.notifier.ShippingChanged(settings)
}

func (s *Store) markStale(err error) {
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
	s.notifier.SyncLost(err)
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product(nil), s.products...)
}

func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}

func (s *Store) Shipping() domain.ShippingSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shipping
}

// Stale reports whether the subscription was lost since the last push.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}

// UpdateProduct snapshots the list, applies patch in memory, then writes it.
// A failed write restores the snapshot, signals the failure and returns the error.
func (s *Store) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if patch.Empty() {
		return domain.Product{}, fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	if patch.PriceCents != nil && *patch.PriceCents < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must not be negative", ErrInvalidPatch)
	}

	s.mu.Lock()
	idx := -1
	for i := range s.products {
		if s.products[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return domain.Product{}, domain.ErrNotFound
	}
	snapshot := s.products
	next := append([]domain.Product(nil), snapshot...)
	next[idx] = patch.Apply(next[idx])
	updated := next[idx]
	s.products = next
	s.mu.Unlock()
	s.notifier.ProductsChanged(next)

	if _, err := s.repo.Update(ctx, id, patch); err != nil {
		s.mu.Lock()
		s.products = snapshot
		s.mu.Unlock()
		s.notifier.ProductsChanged(snapshot)
		s.notifier.MutationFailed(id, err)
		return domain.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	s.logger.Printf("catalog: updated product id=%s", id)
	return updated, nil
}

// LogNotifier writes catalog signals to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) ProductsChanged(products []domain.Product) {
	n.Logger.Printf("catalog: products changed count=%d", len(products))
}

func (n LogNotifier) ShippingChanged(settings domain.ShippingSettings) {
	n.Logger.Printf("catalog: shipping changed threshold=%d flat=%d", settings.FreeShippingThresholdCents, settings.FlatShippingCostCents)
}

func (n LogNotifier) SyncLost(err error) {
	n.Logger.Printf("catalog: sync lost, data may be stale error=%v", err)
}

func (n LogNotifier) MutationFailed(productID string, err error) {
	n.Logger.Printf("catalog: update failed id=%s error=%v", productID, err)
}

// Notifiers fans signals out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) ProductsChanged(products []domain.Product) {
	for _, n := range ns {
		n.ProductsChanged(products)
	}
}

func (ns Notifiers) ShippingChanged(settings domain.ShippingSettings) {
	for _, n := range ns {
		n.ShippingChanged(settings)
	}
}

func (ns Notifiers) SyncLost(err error) {
	for _, n := range ns {
		n.SyncLost(err)
	}
}

func (ns Notifiers) MutationFailed(productID string, err error) {
	for _, n := range ns {
		n.MutationFailed(productID, err)
	}
}
