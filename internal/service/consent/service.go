package consent

import (
	"context"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/kvcache"
)

// Listener is notified after every explicit consent change.
type Listener func(domain.ConsentRecord)

// Store owns the session's consent record. A missing record means no
// non-essential consent.
type Store struct {
	cache  kvcache.Cache
	logger *log.Logger
	now    func() time.Time

	mu        sync.RWMutex
	rec       *domain.ConsentRecord
	listeners map[int]Listener
	nextID    int
}

// Load restores the stored record exactly as written. An unreadable record is
// treated as unset.
func Load(ctx context.Context, cache kvcache.Cache, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Store{
		cache:     cache,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	var rec domain.ConsentRecord
	ok, err := kvcache.GetJSON(ctx, cache, kvcache.KeyConsent, &rec)
	if err != nil {
		logger.Printf("consent: load error=%v", err)
		return s
	}
	if ok {
		rec.Essential = true
		s.rec = &rec
	}
	return s
}

// Record returns the current record and whether the user has decided yet.
func (s *Store) Record() (domain.ConsentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return domain.ConsentRecord{Essential: true}, false
	}
	return *s.rec, true
}

func (s *Store) HasConsent(c domain.ConsentCategory) bool {
	if c == domain.ConsentEssential {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec != nil && s.rec.Allows(c)
}

func (s *Store) AcceptAll(ctx context.Context) (domain.ConsentRecord, error) {
	return s.save(ctx, true, true)
}

func (s *Store) RejectAll(ctx context.Context) (domain.ConsentRecord, error) {
	return s.save(ctx, false, false)
}

func (s *Store) SaveCustom(ctx context.Context, analytics, marketing bool) (domain.ConsentRecord, error) {
	return s.save(ctx, analytics, marketing)
}

// Subscribe registers fn for consent changes and returns its unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) save(ctx context.Context, analytics, marketing bool) (domain.ConsentRecord, error) {
	rec := domain.ConsentRecord{
		Essential: true,
		Analytics: analytics,
		Marketing: marketing,
		Timestamp: s.now().UTC(),
	}

	s.mu.Lock()
	s.rec = &rec
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	err := kvcache.SetJSON(ctx, s.cache, kvcache.KeyConsent, rec)
	if err != nil {
		s.logger.Printf("consent: persist error=%v", err)
	}
	for _, fn := range listeners {
		fn(rec)
	}
	return rec, err
}
