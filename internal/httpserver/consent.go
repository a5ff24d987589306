package httpserver

import (
	"net/http"

	"chocolate-storefront/internal/domain"
	"github.com/gin-gonic/gin"
)

func (h *handlers) getConsent(c *gin.Context) {
	rec, decided := currentSession(c).Consent.Record()
	resp := gin.H{"decided": decided}
	if decided {
		resp["record"] = rec
	}
	c.JSON(http.StatusOK, resp)
}

type consentRequest struct {
	Choice    string `json:"choice"`
	Analytics bool   `json:"analytics"`
	Marketing bool   `json:"marketing"`
}

func (h *handlers) saveConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	store := currentSession(c).Consent
	ctx := c.Request.Context()
	var (
		rec domain.ConsentRecord
		err error
	)
	switch req.Choice {
	case "accept_all":
		rec, err = store.AcceptAll(ctx)
	case "reject_all":
		rec, err = store.RejectAll(ctx)
	case "custom":
		rec, err = store.SaveCustom(ctx, req.Analytics, req.Marketing)
	default:
		badRequest(c, "choice must be accept_all, reject_all or custom")
		return
	}
	// The choice applies to this session even when it could not be persisted.
	if err != nil {
		h.logger.Printf("httpserver: consent persist failed error=%v", err)
	}
	c.JSON(http.StatusOK, gin.H{"decided": true, "record": rec, "persisted": err == nil})
}
