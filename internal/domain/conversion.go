package domain

import "time"

// EventName is a marketing conversion event understood by the ad platform.
type EventName string

const (
	EventViewContent      EventName = "ViewContent"
	EventAddToCart        EventName = "AddToCart"
	EventInitiateCheckout EventName = "InitiateCheckout"
	EventPurchase         EventName = "Purchase"
)

// ConversionItem is one product inside a conversion value payload.
type ConversionItem struct {
	ProductID  string `json:"id"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"itemPriceCents"`
}

// ValueData describes the monetary side of a conversion.
type ValueData struct {
	Currency    string           `json:"currency"`
	AmountCents int64            `json:"amountCents"`
	Items       []ConversionItem `json:"items,omitempty"`
	OrderID     string           `json:"orderId,omitempty"`
}

// UserData is the optional matching data sent through the server relay.
// Email and Phone are plaintext here; the relay hashes them before they leave the process.
type UserData struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
	ClientIP   string `json:"clientIp,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	FBC        string `json:"fbc,omitempty"`
	FBP        string `json:"fbp,omitempty"`
}

// ConversionEvent is one logical user action reported to both delivery channels under one ID.
type ConversionEvent struct {
	ID         string    `json:"eventId"`
	Name       EventName `json:"eventName"`
	SourceURL  string    `json:"eventSourceUrl,omitempty"`
	Value      ValueData `json:"valueData"`
	User       UserData  `json:"userData"`
	OccurredAt time.Time `json:"occurredAt"`
}

// AnalyticsEvent is a consent-gated product analytics hit.
type AnalyticsEvent struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}
