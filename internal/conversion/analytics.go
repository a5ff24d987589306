package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"chocolate-storefront/internal/domain"
)

const defaultGA4Endpoint = "https://www.google-analytics.com/mp/collect"

// AnalyticsSink receives product analytics hits.
type AnalyticsSink interface {
	Collect(ctx context.Context, clientID string, ev domain.AnalyticsEvent) error
}

// GA4Client sends hits through the GA4 Measurement Protocol.
type GA4Client struct {
	endpoint      string
	measurementID string
	apiSecret     string
	client        *http.Client
}

func NewGA4Client(measurementID, apiSecret string) *GA4Client {
	return &GA4Client{
		endpoint:      defaultGA4Endpoint,
		measurementID: measurementID,
		apiSecret:     apiSecret,
		client:        &http.Client{Timeout: 10 * time.Second},
	}
}

// WithEndpoint points the client at another collector, e.g. the debug endpoint.
func (c *GA4Client) WithEndpoint(endpoint string) *GA4Client {
	c.endpoint = endpoint
	return c
}

type ga4Request struct {
	ClientID string     `json:"client_id"`
	Events   []ga4Event `json:"events"`
}

type ga4Event struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

func (c *GA4Client) Collect(ctx context.Context, clientID string, ev domain.AnalyticsEvent) error {
	body, err := json.Marshal(ga4Request{
		ClientID: clientID,
		Events:   []ga4Event{{Name: ev.Name, Params: ev.Params}},
	})
	if err != nil {
		return err
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("measurement_id", c.measurementID)
	q.Set("api_secret", c.apiSecret)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ga4 status %d", resp.StatusCode)
	}
	return nil
}

// ItemParams builds the GA4 ecommerce parameters for a set of lines.
func ItemParams(currency string, valueCents int64, items []domain.ConversionItem) map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		list = append(list, map[string]interface{}{
			"item_id":  item.ProductID,
			"quantity": item.Quantity,
			"price":    majorUnits(item.PriceCents),
		})
	}
	return map[string]interface{}{
		"currency": currency,
		"value":    majorUnits(valueCents),
		"items":    list,
	}
}
