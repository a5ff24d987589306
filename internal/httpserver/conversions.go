package httpserver

import (
	"math"
	"net/http"
	"strings"
	"time"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

var relayableEvents = map[domain.EventName]bool{
	domain.EventViewContent:      true,
	domain.EventAddToCart:        true,
	domain.EventInitiateCheckout: true,
	domain.EventPurchase:         true,
}

type relayItem struct {
	ID        string  `json:"id"`
	Quantity  int     `json:"quantity"`
	ItemPrice float64 `json:"itemPrice"`
}

// relayRequest is what the browser posts after firing its own beacon.
// Money arrives in major units.
type relayRequest struct {
	EventID        string           `json:"eventId"`
	EventName      domain.EventName `json:"eventName"`
	EventSourceURL string           `json:"eventSourceUrl"`
	Currency       string           `json:"currency"`
	Value          float64          `json:"value"`
	OrderID        string           `json:"orderId"`
	Items          []relayItem      `json:"items"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func (h *handlers) relayConversion(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	req.EventID = strings.TrimSpace(req.EventID)
	if req.EventID == "" {
		badRequest(c, "eventId required")
		return
	}
	if !relayableEvents[req.EventName] {
		badRequest(c, "unsupported eventName")
		return
	}

	sess := currentSession(c)
	info := conversion.RequestInfoFrom(c.Request.Context())
	ev := domain.ConversionEvent{
		ID:        req.EventID,
		Name:      req.EventName,
		SourceURL: req.EventSourceURL,
		Value: domain.ValueData{
			Currency:    strings.ToUpper(req.Currency),
			AmountCents: toCents(req.Value),
			OrderID:     req.OrderID,
		},
		User: domain.UserData{
			Email:     req.Email,
			Phone:     req.Phone,
			ClientIP:  info.ClientIP,
			UserAgent: info.UserAgent,
			FBC:       info.FBC,
			FBP:       info.FBP,
		},
		OccurredAt: time.Now().UTC(),
	}
	if ev.SourceURL == "" {
		ev.SourceURL = info.SourceURL
	}
	for _, it := range req.Items {
		ev.Value.Items = append(ev.Value.Items, domain.ConversionItem{
			ProductID:  it.ID,
			Quantity:   it.Quantity,
			PriceCents: toCents(it.ItemPrice),
		})
	}
	if customer := sess.Customer(); customer != nil {
		ev.User.ExternalID = customer.ID
		if ev.User.Email == "" {
			ev.User.Email = customer.Email
		}
		if ev.User.Phone == "" {
			ev.User.Phone = customer.Phone
		}
	}

	accepted := sess.Pipeline.Relay(c.Request.Context(), ev)
	c.JSON(http.StatusAccepted, gin.H{"accepted": accepted, "eventId": ev.ID})
}
