package httpserver

import (
	"errors"
	"net/http"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/service/cart"
	"chocolate-storefront/internal/service/catalog"
	"chocolate-storefront/internal/service/checkout"
	customersvc "chocolate-storefront/internal/service/customer"
	"chocolate-storefront/internal/session"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, checkout.ErrPaymentDeclined):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, customersvc.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrGiftMessageTooLong),
		errors.Is(err, catalog.ErrInvalidPatch),
		errors.Is(err, customersvc.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrAttemptClosed),
		errors.Is(err, checkout.ErrAttemptBusy),
		errors.Is(err, session.ErrNoAttempt):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
