package httpserver

import (
	"errors"
	"net/http"

	"chocolate-storefront/internal/conversion"
	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/service/catalog"
	"github.com/gin-gonic/gin"
)

func (h *handlers) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"products": h.deps.Catalog.Products(),
		"stale":    h.deps.Catalog.Stale(),
	})
}

func (h *handlers) getProduct(c *gin.Context) {
	p, ok := h.deps.Catalog.Product(c.Param("id"))
	if !ok {
		respondError(c, domain.ErrNotFound)
		return
	}
	resp := gin.H{"product": p}
	if sess := currentSession(c); sess != nil {
		ctx := c.Request.Context()
		value := domain.ValueData{
			Currency:    p.Currency,
			AmountCents: p.PriceCents,
			Items:       []domain.ConversionItem{{ProductID: p.ID, Quantity: 1, PriceCents: p.PriceCents}},
		}
		resp["eventId"] = sess.Pipeline.Report(ctx, domain.EventViewContent, value)
		sess.Pipeline.Analytics(ctx, domain.AnalyticsEvent{
			Name:   "view_item",
			Params: conversion.ItemParams(p.Currency, p.PriceCents, value.Items),
		})
		resp["favorite"] = sess.Cart.IsFavorite(p.ID)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) getShipping(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Catalog.Shipping())
}

// updateProduct applies a staff edit optimistically; a failed remote write
// has already been rolled back by the time this returns.
func (h *handlers) updateProduct(c *gin.Context) {
	var patch domain.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid json")
		return
	}
	p, err := h.deps.Catalog.UpdateProduct(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidPatch) || errors.Is(err, domain.ErrNotFound) {
			respondError(c, err)
			return
		}
		h.logger.Printf("httpserver: product update rolled back id=%s error=%v", c.Param("id"), err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "update failed and was rolled back"})
		return
	}
	c.JSON(http.StatusOK, p)
}
