package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/kvcache"
	"chocolate-storefront/internal/service/cart"
	"chocolate-storefront/internal/service/consent"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidID = errors.New("invalid session id")

type favoriteRepo interface {
	Get(ctx context.Context, userID string) ([]string, error)
	Put(ctx context.Context, userID string, productIDs []string) error
}

type customerReader interface {
	Get(ctx context.Context, id string) (*domain.Customer, error)
}

// Deps are the process-wide collaborators every session is built from.
type Deps struct {
	Cache     kvcache.Cache
	Favorites favoriteRepo
	Customers customerReader
	// Loader, Relay and Analytics are optional channels.
	Loader             conversion.Loader
	Relay              conversion.Relay
	Analytics          conversion.AnalyticsSink
	BeaconReadyTimeout time.Duration
	GiftMessageMax     int
	IdleTTL            time.Duration
	Logger             *log.Logger
}

// Manager keeps live sessions in memory and rebuilds evicted ones on demand.
type Manager struct {
	deps Deps
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	builds   singleflight.Group
}

func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = log.New(io.Discard, "", 0)
	}
	if deps.IdleTTL <= 0 {
		deps.IdleTTL = 30 * time.Minute
	}
	return &Manager{deps: deps, now: time.Now, sessions: make(map[string]*Session)}
}

// NewID mints a session id.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Get returns the live session for sid, rebuilding it from the cache when
// needed. Rebuilds run outside the registry lock; concurrent requests for the
// same sid share one rebuild.
func (m *Manager) Get(ctx context.Context, sid string) (*Session, error) {
	parsed, err := uuid.Parse(sid)
	if err != nil {
		return nil, ErrInvalidID
	}
	sid = parsed.String()

	if s := m.lookup(sid); s != nil {
		return s, nil
	}
	v, _, _ := m.builds.Do(sid, func() (interface{}, error) {
		if s := m.lookup(sid); s != nil {
			return s, nil
		}
		s := m.build(context.WithoutCancel(ctx), sid)
		m.mu.Lock()
		m.sessions[sid] = s
		m.mu.Unlock()
		return s, nil
	})
	return v.(*Session), nil
}

func (m *Manager) lookup(sid string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil
	}
	s.touch(m.now())
	return s
}

func (m *Manager) build(ctx context.Context, sid string) *Session {
	cache := kvcache.Namespace(m.deps.Cache, "session:"+sid)
	logger := m.deps.Logger

	consentStore := consent.Load(ctx, cache, logger)
	cfg := conversion.PipelineConfig{
		Consent:   consentStore,
		Relay:     m.deps.Relay,
		Analytics: m.deps.Analytics,
		ClientID:  sid,
		Logger:    logger,
	}
	var beacon *conversion.Beacon
	if m.deps.Loader != nil {
		beacon = conversion.NewBeacon(consentStore, m.deps.Loader, m.deps.BeaconReadyTimeout, logger)
		cfg.Beacon = beacon
	}
	pipeline := conversion.NewPipeline(cfg)
	cartStore := cart.Load(ctx, cache, m.deps.Favorites, pipeline, cart.Options{
		GiftMessageMax: m.deps.GiftMessageMax,
		Logger:         logger,
	})

	s := &Session{
		ID:       sid,
		Consent:  consentStore,
		Cart:     cartStore,
		Beacon:   beacon,
		Pipeline: pipeline,
		cache:    cache,
		lastSeen: m.now(),
	}
	if beacon != nil {
		s.unsubscribe = consentStore.Subscribe(beacon.OnConsentChange)
	}

	var userID string
	ok, err := kvcache.GetJSON(ctx, cache, kvcache.KeyUser, &userID)
	if err != nil {
		logger.Printf("session: load user sid=%s error=%v", sid, err)
	}
	if ok && userID != "" && m.deps.Customers != nil {
		c, err := m.deps.Customers.Get(ctx, userID)
		if err != nil {
			logger.Printf("session: restore user sid=%s user=%s error=%v", sid, userID, err)
		} else if err := s.SignIn(ctx, c); err != nil {
			logger.Printf("session: restore sign-in sid=%s error=%v", sid, err)
		}
	}
	return s
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL. Their state stays in the cache.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.deps.IdleTTL)
	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()
	for _, s := range evicted {
		s.close()
	}
	return len(evicted)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.deps.Logger.Printf("session: evicted idle=%d", n)
			}
		}
	}
}

// Drain waits for in-flight instrumentation of every live session.
func (m *Manager) Drain() {
	m.mu.Lock()
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()
	for _, s := range live {
		s.Pipeline.Wait()
	}
}
