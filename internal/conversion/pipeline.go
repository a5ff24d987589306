package conversion

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"chocolate-storefront/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Relay reports an event from the trusted backend.
type Relay interface {
	Send(ctx context.Context, ev domain.ConversionEvent) error
}

// BeaconTracker is the client-side channel.
type BeaconTracker interface {
	Track(ctx context.Context, event domain.EventName, payload map[string]interface{}, eventID string)
}

// Pipeline mints one event id per user action and drives the beacon and the
// relay from it. Delivery runs in the background; failures are logged and
// never reach the caller.
type Pipeline struct {
	consent   ConsentChecker
	beacon    BeaconTracker
	relay     Relay
	analytics AnalyticsSink
	clientID  string
	logger    *log.Logger
	tracer    trace.Tracer

	newID func() string
	now   func() time.Time

	mu       sync.Mutex
	identity domain.UserData

	wg sync.WaitGroup
}

type PipelineConfig struct {
	Consent ConsentChecker
	Beacon  BeaconTracker
	// Relay and Analytics are optional.
	Relay     Relay
	Analytics AnalyticsSink
	// ClientID identifies the browser to the analytics collector.
	ClientID string
	Logger   *log.Logger
	// Tracer defaults to the global provider.
	Tracer trace.TracerProvider
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tp := cfg.Tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Pipeline{
		consent:   cfg.Consent,
		beacon:    cfg.Beacon,
		relay:     cfg.Relay,
		analytics: cfg.Analytics,
		clientID:  cfg.ClientID,
		logger:    logger,
		tracer:    tp.Tracer("chocolate-storefront/conversion"),
		newID:     NewEventID,
		now:       time.Now,
	}
}

// SetIdentity replaces the signed-in user's matching data. Pass the zero value on sign-out.
func (p *Pipeline) SetIdentity(u domain.UserData) {
	p.mu.Lock()
	p.identity = u
	p.mu.Unlock()
}

// Report records one logical action and returns its event id. Both channels
// receive the same id.
func (p *Pipeline) Report(ctx context.Context, name domain.EventName, value domain.ValueData) string {
	id := p.newID()
	if !p.consent.HasConsent(domain.ConsentMarketing) {
		return id
	}

	info := RequestInfoFrom(ctx)
	p.mu.Lock()
	user := p.identity
	p.mu.Unlock()
	if override, ok := userFrom(ctx); ok {
		if override.Email != "" {
			user.Email = override.Email
		}
		if override.Phone != "" {
			user.Phone = override.Phone
		}
		if override.ExternalID != "" {
			user.ExternalID = override.ExternalID
		}
	}
	user.ClientIP = info.ClientIP
	user.UserAgent = info.UserAgent
	user.FBC = info.FBC
	user.FBP = info.FBP

	ev := domain.ConversionEvent{
		ID:         id,
		Name:       name,
		SourceURL:  info.SourceURL,
		Value:      value,
		User:       user,
		OccurredAt: p.now(),
	}

	bg := context.WithoutCancel(ctx)
	if p.beacon != nil {
		p.goSafe("beacon", func() {
			p.deliver(bg, "beacon", ev, func(ctx context.Context) error {
				p.beacon.Track(ctx, ev.Name, BeaconPayload(ev.Value), ev.ID)
				return nil
			})
		})
	}
	if p.relay != nil {
		p.goSafe("relay", func() {
			p.deliver(bg, "relay", ev, func(ctx context.Context) error {
				return p.relay.Send(ctx, ev)
			})
		})
	}
	return id
}

// Analytics sends a product analytics hit when analytics consent is granted.
func (p *Pipeline) Analytics(ctx context.Context, ev domain.AnalyticsEvent) {
	if p.analytics == nil || !p.consent.HasConsent(domain.ConsentAnalytics) {
		return
	}
	bg := context.WithoutCancel(ctx)
	p.goSafe("analytics", func() {
		if err := p.analytics.Collect(bg, p.clientID, ev); err != nil {
			p.logger.Printf("debug: analytics failed event=%s error=%v", ev.Name, err)
		}
	})
}

// Relay forwards an event that already carries an id minted by the browser.
// It returns false when marketing consent is missing.
func (p *Pipeline) Relay(ctx context.Context, ev domain.ConversionEvent) bool {
	if p.relay == nil || !p.consent.HasConsent(domain.ConsentMarketing) {
		return false
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now()
	}
	bg := context.WithoutCancel(ctx)
	p.goSafe("relay", func() {
		p.deliver(bg, "relay", ev, func(ctx context.Context) error {
			return p.relay.Send(ctx, ev)
		})
	})
	return true
}

// Wait blocks until every in-flight delivery has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) deliver(ctx context.Context, channel string, ev domain.ConversionEvent, fn func(context.Context) error) {
	ctx, span := p.tracer.Start(ctx, "conversion."+channel, trace.WithAttributes(
		attribute.String("event.name", string(ev.Name)),
		attribute.String("event.id", ev.ID),
	))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Printf("debug: %s failed event=%s id=%s error=%v", channel, ev.Name, ev.ID, err)
	}
}

func (p *Pipeline) goSafe(channel string, fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Printf("debug: %s panicked: %v", channel, r)
			}
		}()
		fn()
	}()
}
