package conversion

import (
	"context"
	"errors"
	"sync"

	"chocolate-storefront/internal/domain"
)

type stubConsent struct {
	mu  sync.Mutex
	rec domain.ConsentRecord
}

func (s *stubConsent) HasConsent(c domain.ConsentCategory) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Allows(c)
}

func (s *stubConsent) set(rec domain.ConsentRecord) {
	s.mu.Lock()
	s.rec = rec
	s.mu.Unlock()
}

type sentEvent struct {
	event   domain.EventName
	payload map[string]interface{}
	eventID string
}

type stubSink struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (s *stubSink) Send(ctx context.Context, verb string, event domain.EventName, payload map[string]interface{}, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEvent{event: event, payload: payload, eventID: eventID})
	return nil
}

func (s *stubSink) events() []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentEvent(nil), s.sent...)
}

type stubLoader struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	sink    Sink
	err     error
	done    chan struct{}
}

func newStubLoader(sink Sink) *stubLoader {
	return &stubLoader{sink: sink, done: make(chan struct{}, 8)}
}

func (l *stubLoader) Load(ctx context.Context) (Sink, error) {
	l.mu.Lock()
	l.calls++
	release := l.release
	l.mu.Unlock()
	defer func() { l.done <- struct{}{} }()
	if release != nil {
		<-release
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.sink, nil
}

func (l *stubLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type stubRelay struct {
	mu   sync.Mutex
	sent []domain.ConversionEvent
	err  error
}

func (r *stubRelay) Send(ctx context.Context, ev domain.ConversionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, ev)
	return r.err
}

func (r *stubRelay) events() []domain.ConversionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ConversionEvent(nil), r.sent...)
}

type recordingBeacon struct {
	mu  sync.Mutex
	ids []string
}

func (b *recordingBeacon) Track(ctx context.Context, event domain.EventName, payload map[string]interface{}, eventID string) {
	b.mu.Lock()
	b.ids = append(b.ids, eventID)
	b.mu.Unlock()
}

func (b *recordingBeacon) eventIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.ids...)
}

type stubAnalytics struct {
	mu     sync.Mutex
	events []domain.AnalyticsEvent
}

func (a *stubAnalytics) Collect(ctx context.Context, clientID string, ev domain.AnalyticsEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *stubAnalytics) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

var errBlocked = errors.New("blocked by client")

var marketingOnly = domain.ConsentRecord{Essential: true, Marketing: true}
