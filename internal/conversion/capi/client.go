// Package capi relays conversion events to the ad platform's server-side
// Conversions API.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chocolate-storefront/internal/domain"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v19.0"
)

var ErrNotConfigured = errors.New("conversions api not configured")

type Client struct {
	baseURL       string
	apiVersion    string
	pixelID       string
	accessToken   string
	testEventCode string
	httpClient    *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.apiVersion = v
		}
	}
}

func WithTestEventCode(code string) Option {
	return func(c *Client) { c.testEventCode = code }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(pixelID, accessToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:     defaultBaseURL,
		apiVersion:  defaultAPIVersion,
		pixelID:     pixelID,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type request struct {
	Data          []serverEvent `json:"data"`
	TestEventCode string        `json:"test_event_code,omitempty"`
	AccessToken   string        `json:"access_token"`
}

type serverEvent struct {
	EventName      string     `json:"event_name"`
	EventID        string     `json:"event_id"`
	EventTime      int64      `json:"event_time"`
	EventSourceURL string     `json:"event_source_url,omitempty"`
	ActionSource   string     `json:"action_source"`
	UserData       userData   `json:"user_data"`
	CustomData     customData `json:"custom_data"`
}

type userData struct {
	Em              []string `json:"em,omitempty"`
	Ph              []string `json:"ph,omitempty"`
	ExternalID      []string `json:"external_id,omitempty"`
	FBC             string   `json:"fbc,omitempty"`
	FBP             string   `json:"fbp,omitempty"`
	ClientIPAddress string   `json:"client_ip_address,omitempty"`
	ClientUserAgent string   `json:"client_user_agent,omitempty"`
}

type content struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"item_price"`
}

type customData struct {
	Currency    string    `json:"currency,omitempty"`
	Value       float64   `json:"value"`
	ContentIDs  []string  `json:"content_ids,omitempty"`
	Contents    []content `json:"contents,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
}

// Send posts one event. Personal fields are hashed here and never leave the
// process in plaintext. The access token travels in the body, so it never
// appears in a request URL or in a transport error.
func (c *Client) Send(ctx context.Context, ev domain.ConversionEvent) error {
	if c.pixelID == "" || c.accessToken == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(request{
		Data:          []serverEvent{buildEvent(ev)},
		TestEventCode: c.testEventCode,
		AccessToken:   c.accessToken,
	})
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/%s/%s/events", c.baseURL, c.apiVersion, url.PathEscape(c.pixelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("capi request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("capi status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func buildEvent(ev domain.ConversionEvent) serverEvent {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	out := serverEvent{
		EventName:      string(ev.Name),
		EventID:        ev.ID,
		EventTime:      occurred.Unix(),
		EventSourceURL: ev.SourceURL,
		ActionSource:   "website",
		UserData: userData{
			FBC:             ev.User.FBC,
			FBP:             ev.User.FBP,
			ClientIPAddress: ev.User.ClientIP,
			ClientUserAgent: ev.User.UserAgent,
		},
		CustomData: customData{
			Currency: ev.Value.Currency,
			Value:    float64(ev.Value.AmountCents) / 100,
			OrderID:  ev.Value.OrderID,
		},
	}
	if h := HashEmail(ev.User.Email); h != "" {
		out.UserData.Em = []string{h}
	}
	if h := HashPhone(ev.User.Phone); h != "" {
		out.UserData.Ph = []string{h}
	}
	if h := hash(strings.TrimSpace(ev.User.ExternalID)); h != "" {
		out.UserData.ExternalID = []string{h}
	}
	for _, item := range ev.Value.Items {
		out.CustomData.ContentIDs = append(out.CustomData.ContentIDs, item.ProductID)
		out.CustomData.Contents = append(out.CustomData.Contents, content{
			ID:        item.ProductID,
			Quantity:  item.Quantity,
			ItemPrice: float64(item.PriceCents) / 100,
		})
	}
	if len(out.CustomData.Contents) > 0 {
		out.CustomData.ContentType = "product"
	}
	return out
}
