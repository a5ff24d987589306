package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chocolate-storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0532 123 45 67":   "905321234567",
		"+90 532 123 4567": "905321234567",
		"0090 5321234567":  "905321234567",
		"":                 "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestHashEmailNormalises(t *testing.T) {
	assert.Equal(t, HashEmail("ayse@example.com"), HashEmail("  Ayse@Example.COM "))
	assert.Len(t, HashEmail("ayse@example.com"), 64)
	assert.Empty(t, HashEmail("   "))
}

func TestSendPostsHashedPayload(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		gotBody = []byte(buf.String())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	c := New("123", "tok", WithBaseURL(srv.URL), WithAPIVersion("v20.0"), WithTestEventCode("TEST1"))
	err := c.Send(context.Background(), domain.ConversionEvent{
		ID:        "01HZX",
		Name:      domain.EventPurchase,
		SourceURL: "https://shop.example/checkout",
		Value: domain.ValueData{
			Currency:    "TRY",
			AmountCents: 39500,
			OrderID:     "CHOC-123456",
			Items:       []domain.ConversionItem{{ProductID: "p1", Quantity: 2, PriceCents: 15000}},
		},
		User:       domain.UserData{Email: "Ayse@Example.com", Phone: "0532 123 45 67", FBC: "fb.1.1.abc", ClientIP: "10.0.0.1"},
		OccurredAt: time.Unix(1700000000, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "/v20.0/123/events", gotPath)
	assert.Empty(t, gotQuery)
	assert.NotContains(t, string(gotBody), "Ayse@Example.com")
	assert.NotContains(t, string(gotBody), "5321234567")

	var req request
	require.NoError(t, json.Unmarshal(gotBody, &req))
	require.Len(t, req.Data, 1)
	ev := req.Data[0]
	assert.Equal(t, "TEST1", req.TestEventCode)
	assert.Equal(t, "tok", req.AccessToken)
	assert.Equal(t, "Purchase", ev.EventName)
	assert.Equal(t, "01HZX", ev.EventID)
	assert.Equal(t, int64(1700000000), ev.EventTime)
	assert.Equal(t, "website", ev.ActionSource)
	assert.Equal(t, []string{HashEmail("ayse@example.com")}, ev.UserData.Em)
	assert.Equal(t, []string{HashPhone("+905321234567")}, ev.UserData.Ph)
	assert.Equal(t, "fb.1.1.abc", ev.UserData.FBC)
	assert.Equal(t, 395.0, ev.CustomData.Value)
	assert.Equal(t, "CHOC-123456", ev.CustomData.OrderID)
	assert.Equal(t, []string{"p1"}, ev.CustomData.ContentIDs)
	assert.Equal(t, "product", ev.CustomData.ContentType)
}

func TestSendReportsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := New("123", "tok", WithBaseURL(srv.URL)).Send(context.Background(), domain.ConversionEvent{ID: "x", Name: domain.EventAddToCart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSendWithoutCredentials(t *testing.T) {
	err := New("", "").Send(context.Background(), domain.ConversionEvent{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSendTransportErrorOmitsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	err := New("123", "s3cr3t-token", WithBaseURL(base)).Send(context.Background(), domain.ConversionEvent{ID: "x", Name: domain.EventAddToCart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capi request")
	assert.NotContains(t, err.Error(), "s3cr3t-token")
}
