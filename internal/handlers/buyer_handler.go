package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/checkout"
	"github.com/tesoroschoco/marketplace-api/internal/notifications"
	"github.com/tesoroschoco/marketplace-api/internal/orders"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// registerBuyerRoutes mounts the cart, checkout and order history surface.
func registerBuyerRoutes(r *gin.Engine, d *deps) {
	g := r.Group("/buyer", d.mw.Authenticate(), auth.Require(auth.Requirement{
		Roles: []string{users.RoleBuyer, users.RoleAdmin},
	}))

	g.POST("/cart", func(c *gin.Context) {
		var req validation.AddToCartRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}
		if !d.checkStockForCart(c, req.ProductID, req.Quantity) {
			return
		}
		uid := auth.Profile(c).UserID
		if err := d.users.AddCartItem(c.Request.Context(), uid, req.ProductID, req.Quantity); err != nil {
			d.respondCartError(c, err)
			return
		}
		d.respondCart(c, uid)
	})

	g.PUT("/cart/:productId", func(c *gin.Context) {
		var req validation.UpdateCartItemRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}
		productID := c.Param("productId")
		if !d.checkStockForCart(c, productID, req.Quantity) {
			return
		}
		uid := auth.Profile(c).UserID
		if err := d.users.UpdateCartItem(c.Request.Context(), uid, productID, req.Quantity); err != nil {
			d.respondCartError(c, err)
			return
		}
		d.respondCart(c, uid)
	})

	g.DELETE("/cart/:productId", func(c *gin.Context) {
		uid := auth.Profile(c).UserID
		if err := d.users.RemoveCartItem(c.Request.Context(), uid, c.Param("productId")); err != nil {
			d.respondCartError(c, err)
			return
		}
		d.respondCart(c, uid)
	})

	g.POST("/checkout", func(c *gin.Context) {
		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		profile := auth.Profile(c)
		order, err := d.coordinator.Checkout(c.Request.Context(), profile.UserID, req.ShippingAddress)
		if err != nil {
			respondCheckoutError(c, err)
			return
		}

		d.notifier.PublishAsync(c.Request.Context(), notifications.Event{
			Type:      notifications.EventOrderConfirmed,
			Recipient: profile.Email,
			Subject:   "Order confirmed",
			Data: map[string]string{
				"order_id":    order.OrderID,
				"total_price": fmt.Sprintf("%.2f", order.TotalPrice),
			},
		})
		c.JSON(http.StatusCreated, gin.H{"order": order})
	})

	g.GET("/orders", func(c *gin.Context) {
		list, err := d.orders.ListByBuyer(c.Request.Context(), auth.Profile(c).UserID)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load orders")
			return
		}
		if list == nil {
			list = []orders.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
	})
}

// checkStockForCart rejects cart writes that already exceed current stock.
// Checkout re-validates inside the transaction; this check just keeps the
// obvious failure close to the click.
func (d *deps) checkStockForCart(c *gin.Context, productID string, quantity int) bool {
	p, err := d.products.Get(c.Request.Context(), productID)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load product")
		return false
	}
	if p == nil || !p.IsActive {
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
		return false
	}
	if quantity > p.Stock {
		respondError(c, http.StatusBadRequest, "INSUFFICIENT_STOCK",
			fmt.Sprintf("only %d units available", p.Stock))
		return false
	}
	return true
}

func (d *deps) respondCart(c *gin.Context, userID string) {
	profile, err := d.users.Get(c.Request.Context(), userID)
	if err != nil || profile == nil {
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not reload cart")
		return
	}
	cart := profile.Cart
	if cart == nil {
		cart = []users.CartItem{}
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

func (d *deps) respondCartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, users.ErrNotFound):
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "profile not found")
	case errors.Is(err, users.ErrCartItemMissing):
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not in cart")
	case errors.Is(err, users.ErrCartConflict):
		respondError(c, http.StatusConflict, "CONFLICT", "cart modified concurrently, retry")
	default:
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update cart")
	}
}

// respondCheckoutError maps coordinator failures to their wire codes.
func respondCheckoutError(c *gin.Context, err error) {
	var vanished *checkout.ProductVanishedError
	var stock *checkout.InsufficientStockError
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(c, http.StatusBadRequest, "EMPTY_CART", "cart is empty")
	case errors.As(err, &vanished):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "PRODUCT_VANISHED",
			"message":   "a product in the cart is no longer available",
			"productId": vanished.ProductID,
		})
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "INSUFFICIENT_STOCK",
			"message":   fmt.Sprintf("requested %d, only %d available", stock.Requested, stock.Available),
			"productId": stock.ProductID,
			"requested": stock.Requested,
			"available": stock.Available,
		})
	case errors.Is(err, checkout.ErrConflict):
		respondError(c, http.StatusConflict, "CHECKOUT_CONFLICT", "checkout raced with concurrent updates, retry")
	case errors.Is(err, checkout.ErrTimeout):
		respondError(c, http.StatusGatewayTimeout, "CHECKOUT_TIMEOUT", "checkout timed out, no charge was made")
	case errors.Is(err, checkout.ErrCartTooLarge):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "too many distinct products in one checkout")
	case errors.Is(err, users.ErrNotFound):
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "profile not found")
	default:
		respondError(c, http.StatusInternalServerError, "CHECKOUT_ERROR", "checkout failed")
	}
}
