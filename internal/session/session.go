// Package session owns the per-browser stores. A session is identified by an
// opaque cookie id and can always be rebuilt from the key/value cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/kvcache"
	"chocolate-storefront/internal/service/cart"
	"chocolate-storefront/internal/service/checkout"
	"chocolate-storefront/internal/service/consent"
)

var ErrNoAttempt = errors.New("no checkout in progress")

// ClickIDs are the first-party ad-click identifiers.
type ClickIDs struct {
	FBP string
	FBC string
}

// Session bundles one visitor's consent, cart, beacon and pipeline.
type Session struct {
	ID       string
	Consent  *consent.Store
	Cart     *cart.Store
	Beacon   *conversion.Beacon
	Pipeline *conversion.Pipeline

	cache kvcache.Cache

	mu          sync.Mutex
	customer    *domain.Customer
	attempt     *checkout.Attempt
	clicks      ClickIDs
	lastSeen    time.Time
	unsubscribe func()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Customer returns the signed-in customer, if any.
func (s *Session) Customer() *domain.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customer
}

// SignIn attaches the customer, pulls their remote favorites once and makes
// their contact data available to the relay.
func (s *Session) SignIn(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return errors.New("customer required")
	}
	s.mu.Lock()
	s.customer = c
	s.mu.Unlock()

	s.Cart.SignIn(ctx, c.ID)
	s.Pipeline.SetIdentity(domain.UserData{Email: c.Email, Phone: c.Phone, ExternalID: c.ID})
	if err := kvcache.SetJSON(ctx, s.cache, kvcache.KeyUser, c.ID); err != nil {
		return fmt.Errorf("persist session user: %w", err)
	}
	return nil
}

// SignOut detaches the customer. Local favorites stay.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	s.customer = nil
	s.mu.Unlock()

	s.Cart.SignOut()
	s.Pipeline.SetIdentity(domain.UserData{})
	return s.cache.Delete(ctx, kvcache.KeyUser)
}

// CaptureClickIDs records the _fbp/_fbc cookies. A fbclid query parameter
// derives a fresh _fbc value; the returned flag reports that it changed.
func (s *Session) CaptureClickIDs(fbp, fbc, fbclid string, now time.Time) (ClickIDs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fbp != "" {
		s.clicks.FBP = fbp
	}
	if fbc != "" {
		s.clicks.FBC = fbc
	}
	changed := false
	if fbclid = strings.TrimSpace(fbclid); fbclid != "" && !strings.HasSuffix(s.clicks.FBC, "."+fbclid) {
		s.clicks.FBC = fmt.Sprintf("fb.1.%d.%s", now.UnixMilli(), fbclid)
		changed = true
	}
	return s.clicks, changed
}

func (s *Session) ClickIDs() ClickIDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks
}

// BeginCheckout replaces any unfinished attempt with a new one.
func (s *Session) BeginCheckout(ctx context.Context, svc *checkout.Service) (*checkout.Attempt, error) {
	attempt, err := svc.Begin(ctx, s.Cart, s.Pipeline)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.attempt = attempt
	s.mu.Unlock()
	return attempt, nil
}

// Attempt returns the open checkout attempt.
func (s *Session) Attempt() (*checkout.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil || s.attempt.State() == checkout.StateSucceeded {
		return nil, ErrNoAttempt
	}
	return s.attempt, nil
}

func (s *Session) close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
