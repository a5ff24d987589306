package httpserver

import (
	"net/http"

	customersvc "chocolate-storefront/internal/service/customer"
	"github.com/gin-gonic/gin"
)

func (h *handlers) signup(c *gin.Context) {
	if h.deps.Customers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "accounts unavailable"})
		return
	}
	var req customersvc.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	customer, err := h.deps.Customers.Signup(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := currentSession(c).SignIn(ctx, customer); err != nil {
		h.logger.Printf("httpserver: sign in after signup failed customer=%s error=%v", customer.ID, err)
	}
	c.JSON(http.StatusCreated, customer)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handlers) login(c *gin.Context) {
	if h.deps.Customers == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "accounts unavailable"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	ctx := c.Request.Context()
	customer, err := h.deps.Customers.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := currentSession(c).SignIn(ctx, customer); err != nil {
		h.logger.Printf("httpserver: session sign in failed customer=%s error=%v", customer.ID, err)
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) logout(c *gin.Context) {
	if err := currentSession(c).SignOut(c.Request.Context()); err != nil {
		h.logger.Printf("httpserver: sign out failed error=%v", err)
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	current := currentSession(c).Customer()
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	customer, err := h.deps.Customers.Get(c.Request.Context(), current.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *handlers) addAddress(c *gin.Context) {
	current := currentSession(c).Customer()
	if current == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	var req customersvc.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	addr, err := h.deps.Customers.AddAddress(c.Request.Context(), current.ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, addr)
}
