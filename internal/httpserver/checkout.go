package httpserver

import (
	"net/http"
	"strings"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/service/checkout"
	"github.com/gin-gonic/gin"
)

func (h *handlers) beginCheckout(c *gin.Context) {
	if h.deps.Checkout == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "checkout unavailable"})
		return
	}
	attempt, err := currentSession(c).BeginCheckout(c.Request.Context(), h.deps.Checkout)
	if err != nil {
		respondError(c, err)
		return
	}
	initiate, _ := attempt.EventIDs()
	c.JSON(http.StatusCreated, gin.H{"state": attempt.State(), "eventId": initiate})
}

type submitRequest struct {
	Email         string               `json:"email"`
	AddressID     string               `json:"addressId"`
	Address       *domain.Address      `json:"address"`
	AcceptTerms   bool                 `json:"acceptTerms"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	Card          *checkout.CardInput  `json:"card"`
}

func (h *handlers) submitCheckout(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	sess := currentSession(c)
	ctx := c.Request.Context()
	attempt, err := sess.Attempt()
	if err != nil {
		respondError(c, err)
		return
	}

	in := checkout.Input{
		Email:         strings.TrimSpace(req.Email),
		Address:       req.Address,
		AcceptTerms:   req.AcceptTerms,
		PaymentMethod: req.PaymentMethod,
		Card:          req.Card,
	}
	if current := sess.Customer(); current != nil {
		if in.Email == "" {
			in.Email = current.Email
		}
		if req.AddressID != "" && h.deps.Customers != nil {
			customer, err := h.deps.Customers.Get(ctx, current.ID)
			if err != nil {
				respondError(c, err)
				return
			}
			if addr, ok := customer.AddressByID(req.AddressID); ok {
				in.Address = &addr
			}
		}
	}

	order, err := attempt.Submit(ctx, in)
	if err != nil {
		if attempt.State() == checkout.StateFailed {
			h.logger.Printf("httpserver: checkout failed session=%s error=%v", sess.ID, err)
		}
		respondError(c, err)
		return
	}
	_, purchase := attempt.EventIDs()
	c.JSON(http.StatusCreated, gin.H{"order": order, "eventId": purchase})
}

type paymentConfirmation struct {
	Reference string `json:"reference"`
}

func (h *handlers) confirmPayment(c *gin.Context) {
	if h.deps.Orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orders unavailable"})
		return
	}
	var req paymentConfirmation
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid json")
			return
		}
	}
	order, err := h.deps.Orders.ConfirmPayment(c.Request.Context(), c.Param("id"), req.Reference)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Printf("httpserver: payment confirmed order=%s", order.ID)
	c.JSON(http.StatusOK, order)
}
