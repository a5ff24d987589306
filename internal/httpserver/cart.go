package httpserver

import (
	"net/http"

	"chocolate-storefront/internal/domain"
	"chocolate-storefront/internal/session"
	"github.com/gin-gonic/gin"
)

type cartView struct {
	Lines            []domain.CartLine      `json:"lines"`
	Count            int                    `json:"count"`
	SubtotalCents    int64                  `json:"subtotalCents"`
	ShippingCents    int64                  `json:"shippingCents"`
	TotalCents       int64                  `json:"totalCents"`
	RemainingForFree int64                  `json:"remainingForFreeCents"`
	Gift             domain.GiftPreferences `json:"gift"`
	Open             bool                   `json:"open"`
	Stale            bool                   `json:"stale"`
}

func (h *handlers) viewCart(sess *session.Session) cartView {
	lines := sess.Cart.Lines()
	if lines == nil {
		lines = []domain.CartLine{}
	}
	subtotal := sess.Cart.Total()
	shipping := h.deps.Catalog.Shipping()
	cost := shipping.CostFor(subtotal)
	return cartView{
		Lines:            lines,
		Count:            sess.Cart.Count(),
		SubtotalCents:    subtotal,
		ShippingCents:    cost,
		TotalCents:       subtotal + cost,
		RemainingForFree: shipping.RemainingForFree(subtotal),
		Gift:             sess.Cart.Gift(),
		Open:             sess.Cart.IsOpen(),
		Stale:            h.deps.Catalog.Stale(),
	}
}

func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.viewCart(currentSession(c)))
}

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

func (h *handlers) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		badRequest(c, "productId required")
		return
	}
	p, ok := h.deps.Catalog.Product(req.ProductID)
	if !ok {
		respondError(c, domain.ErrNotFound)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	sess := currentSession(c)
	sess.Cart.AddItem(c.Request.Context(), p, qty)
	c.JSON(http.StatusOK, h.viewCart(sess))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	sess := currentSession(c)
	sess.Cart.UpdateQuantity(c.Request.Context(), c.Param("productId"), req.Quantity)
	c.JSON(http.StatusOK, h.viewCart(sess))
}

func (h *handlers) removeCartItem(c *gin.Context) {
	sess := currentSession(c)
	sess.Cart.RemoveItem(c.Request.Context(), c.Param("productId"))
	c.JSON(http.StatusOK, h.viewCart(sess))
}

func (h *handlers) clearCart(c *gin.Context) {
	sess := currentSession(c)
	sess.Cart.Clear(c.Request.Context())
	c.JSON(http.StatusOK, h.viewCart(sess))
}

func (h *handlers) setGift(c *gin.Context) {
	var prefs domain.GiftPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		badRequest(c, "invalid json")
		return
	}
	sess := currentSession(c)
	if err := sess.Cart.SetGift(c.Request.Context(), prefs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.viewCart(sess))
}

func (h *handlers) setCartOpen(c *gin.Context) {
	var req struct {
		Open bool `json:"open"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid json")
		return
	}
	sess := currentSession(c)
	sess.Cart.SetOpen(req.Open)
	c.JSON(http.StatusOK, h.viewCart(sess))
}

func (h *handlers) listFavorites(c *gin.Context) {
	favorites := currentSession(c).Cart.Favorites()
	if favorites == nil {
		favorites = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favorites})
}

func (h *handlers) toggleFavorite(c *gin.Context) {
	id := c.Param("productId")
	favorite := currentSession(c).Cart.ToggleFavorite(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"productId": id, "favorite": favorite})
}
