package conversion

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"chocolate-storefront/internal/domain"
)

// Sink is the loaded beacon implementation: fbq('track', event, payload, {eventID}).
type Sink interface {
	Send(ctx context.Context, verb string, event domain.EventName, payload map[string]interface{}, eventID string) error
}

// Loader injects the beacon script. A failed load means the script is blocked.
type Loader interface {
	Load(ctx context.Context) (Sink, error)
}

type beaconState int

const (
	beaconIdle beaconState = iota
	beaconLoading
	beaconReady
	beaconFailed
)

type beaconCall struct {
	ctx     context.Context
	event   domain.EventName
	payload map[string]interface{}
	eventID string
	done    chan struct{}
	dropped bool
}

// Beacon is the client-side marketing channel. Calls are queued immediately and
// drained once the lazily loaded script is ready; a caller never waits longer
// than the ready timeout.
type Beacon struct {
	consent     ConsentChecker
	loader      Loader
	timeout     time.Duration
	loadTimeout time.Duration
	logger      *log.Logger

	mu    sync.Mutex
	state beaconState
	sink  Sink
	queue []*beaconCall
}

func NewBeacon(consent ConsentChecker, loader Loader, readyTimeout time.Duration, logger *log.Logger) *Beacon {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if readyTimeout <= 0 {
		readyTimeout = 3 * time.Second
	}
	b := &Beacon{
		consent:     consent,
		loader:      loader,
		timeout:     readyTimeout,
		loadTimeout: 10 * time.Second,
		logger:      logger,
	}
	b.Init()
	return b
}

// Init starts loading the script when marketing consent is currently granted.
// It is safe to call repeatedly; the script is injected at most once.
func (b *Beacon) Init() {
	if !b.consent.HasConsent(domain.ConsentMarketing) {
		return
	}
	b.mu.Lock()
	b.startLoadLocked()
	b.mu.Unlock()
}

// OnConsentChange is registered as a consent listener so that consent granted
// mid-session loads the script without a reload.
func (b *Beacon) OnConsentChange(rec domain.ConsentRecord) {
	if rec.Marketing {
		b.Init()
	}
}

// Loaded reports whether the script has been requested.
func (b *Beacon) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state != beaconIdle
}

func (b *Beacon) startLoadLocked() {
	if b.state != beaconIdle || b.loader == nil {
		return
	}
	b.state = beaconLoading
	go b.load()
}

func (b *Beacon) load() {
	ctx, cancel := context.WithTimeout(context.Background(), b.loadTimeout)
	defer cancel()
	sink, err := b.loader.Load(ctx)

	b.mu.Lock()
	queued := b.queue
	b.queue = nil
	if err != nil || sink == nil {
		b.state = beaconFailed
		b.mu.Unlock()
		b.logger.Printf("debug: beacon load failed error=%v dropped=%d", err, len(queued))
		for _, call := range queued {
			close(call.done)
		}
		return
	}
	b.state = beaconReady
	b.sink = sink
	b.mu.Unlock()

	for _, call := range queued {
		b.mu.Lock()
		skip := call.dropped
		b.mu.Unlock()
		if !skip && b.consent.HasConsent(domain.ConsentMarketing) {
			b.send(context.WithoutCancel(call.ctx), sink, call)
		}
		close(call.done)
	}
}

// Track reports one event. It returns once the event was handed to the script,
// the script failed to load, or the ready timeout elapsed; the last two drop
// the event silently.
func (b *Beacon) Track(ctx context.Context, event domain.EventName, payload map[string]interface{}, eventID string) {
	if !b.consent.HasConsent(domain.ConsentMarketing) {
		return
	}

	b.mu.Lock()
	switch b.state {
	case beaconFailed:
		b.mu.Unlock()
		return
	case beaconReady:
		sink := b.sink
		b.mu.Unlock()
		b.send(ctx, sink, &beaconCall{event: event, payload: payload, eventID: eventID})
		return
	}
	call := &beaconCall{ctx: ctx, event: event, payload: payload, eventID: eventID, done: make(chan struct{})}
	b.queue = append(b.queue, call)
	b.startLoadLocked()
	b.mu.Unlock()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case <-call.done:
	case <-timer.C:
		b.drop(call, "ready timeout")
	case <-ctx.Done():
		b.drop(call, "caller done")
	}
}

func (b *Beacon) drop(call *beaconCall, reason string) {
	b.mu.Lock()
	call.dropped = true
	b.mu.Unlock()
	b.logger.Printf("debug: beacon dropped event=%s id=%s reason=%s", call.event, call.eventID, reason)
}

func (b *Beacon) send(ctx context.Context, sink Sink, call *beaconCall) {
	if err := sink.Send(ctx, "track", call.event, call.payload, call.eventID); err != nil {
		b.logger.Printf("debug: beacon send failed event=%s id=%s error=%v", call.event, call.eventID, err)
	}
}

// BeaconPayload converts value data into the beacon's custom-data object.
func BeaconPayload(v domain.ValueData) map[string]interface{} {
	payload := map[string]interface{}{
		"currency": v.Currency,
		"value":    majorUnits(v.AmountCents),
	}
	if len(v.Items) > 0 {
		ids := make([]string, 0, len(v.Items))
		contents := make([]map[string]interface{}, 0, len(v.Items))
		for _, item := range v.Items {
			ids = append(ids, item.ProductID)
			contents = append(contents, map[string]interface{}{
				"id":         item.ProductID,
				"quantity":   item.Quantity,
				"item_price": majorUnits(item.PriceCents),
			})
		}
		payload["content_ids"] = ids
		payload["contents"] = contents
		payload["content_type"] = "product"
	}
	if v.OrderID != "" {
		payload["order_id"] = v.OrderID
	}
	return payload
}

func majorUnits(cents int64) float64 {
	return float64(cents) / 100
}
