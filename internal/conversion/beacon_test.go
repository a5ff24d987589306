package conversion

import (
	"context"
	"testing"
	"time"

	"chocolate-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitLoad(t *testing.T, l *stubLoader) {
	t.Helper()
	select {
	case <-l.done:
	case <-time.After(2 * time.Second):
		t.Fatal("loader did not finish")
	}
}

func TestBeaconNotLoadedWithoutMarketingConsent(t *testing.T) {
	consent := &stubConsent{rec: domain.ConsentRecord{Essential: true, Analytics: true}}
	sink := &stubSink{}
	loader := newStubLoader(sink)
	b := NewBeacon(consent, loader, 50*time.Millisecond, nil)

	for i := 0; i < 5; i++ {
		b.Track(context.Background(), domain.EventAddToCart, nil, NewEventID())
	}

	assert.False(t, b.Loaded())
	assert.Equal(t, 0, loader.callCount())
	assert.Empty(t, sink.events())
}

func TestBeaconQueuesUntilReady(t *testing.T) {
	consent := &stubConsent{rec: marketingOnly}
	sink := &stubSink{}
	loader := newStubLoader(sink)
	loader.release = make(chan struct{})
	b := NewBeacon(consent, loader, 2*time.Second, nil)

	returned := make(chan struct{})
	go func() {
		b.Track(context.Background(), domain.EventAddToCart, map[string]interface{}{"value": 1.0}, "evt-1")
		close(returned)
	}()

	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.queue) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.events())

	close(loader.release)
	<-returned
	waitLoad(t, loader)

	events := sink.events()
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].eventID)

	b.Track(context.Background(), domain.EventPurchase, nil, "evt-2")
	assert.Len(t, sink.events(), 2)
	assert.Equal(t, 1, loader.callCount())
}

func TestBeaconReadyTimeoutDropsSilently(t *testing.T) {
	consent := &stubConsent{rec: marketingOnly}
	sink := &stubSink{}
	loader := newStubLoader(sink)
	loader.release = make(chan struct{})
	b := NewBeacon(consent, loader, 20*time.Millisecond, nil)

	start := time.Now()
	b.Track(context.Background(), domain.EventAddToCart, nil, "late")
	assert.Less(t, time.Since(start), time.Second)

	close(loader.release)
	waitLoad(t, loader)
	assert.Empty(t, sink.events())
}

func TestBeaconBlockedScriptResolves(t *testing.T) {
	consent := &stubConsent{rec: marketingOnly}
	loader := newStubLoader(nil)
	loader.err = errBlocked
	b := NewBeacon(consent, loader, time.Second, nil)
	waitLoad(t, loader)

	b.Track(context.Background(), domain.EventAddToCart, nil, "x")
	b.Track(context.Background(), domain.EventAddToCart, nil, "y")
	assert.Equal(t, 1, loader.callCount())
}

func TestBeaconInitialisesOnLaterConsent(t *testing.T) {
	consent := &stubConsent{}
	sink := &stubSink{}
	loader := newStubLoader(sink)
	b := NewBeacon(consent, loader, time.Second, nil)
	assert.False(t, b.Loaded())

	rec := marketingOnly
	consent.set(rec)
	b.OnConsentChange(rec)
	waitLoad(t, loader)

	assert.True(t, b.Loaded())
	b.Track(context.Background(), domain.EventViewContent, nil, "v1")
	require.Len(t, sink.events(), 1)
}

func TestBeaconRevokedConsentStopsTracking(t *testing.T) {
	consent := &stubConsent{rec: marketingOnly}
	sink := &stubSink{}
	loader := newStubLoader(sink)
	b := NewBeacon(consent, loader, time.Second, nil)
	waitLoad(t, loader)

	b.Track(context.Background(), domain.EventAddToCart, nil, "a")
	consent.set(domain.ConsentRecord{Essential: true})
	b.Track(context.Background(), domain.EventAddToCart, nil, "b")

	events := sink.events()
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].eventID)
}

func TestBeaconPayload(t *testing.T) {
	p := BeaconPayload(domain.ValueData{
		Currency:    "TRY",
		AmountCents: 30000,
		OrderID:     "CHOC-000001",
		Items:       []domain.ConversionItem{{ProductID: "p1", Quantity: 2, PriceCents: 15000}},
	})
	assert.Equal(t, "TRY", p["currency"])
	assert.Equal(t, 300.0, p["value"])
	assert.Equal(t, []string{"p1"}, p["content_ids"])
	assert.Equal(t, "CHOC-000001", p["order_id"])
}

func TestPixelQuery(t *testing.T) {
	q := pixelQuery("42", domain.EventAddToCart, map[string]interface{}{
		"currency":    "TRY",
		"value":       12.5,
		"content_ids": []string{"p1"},
	}, "evt")
	assert.Equal(t, "42", q.Get("id"))
	assert.Equal(t, "AddToCart", q.Get("ev"))
	assert.Equal(t, "evt", q.Get("eid"))
	assert.Equal(t, "12.50", q.Get("cd[value]"))
	assert.Equal(t, `["p1"]`, q.Get("cd[content_ids]"))
}
