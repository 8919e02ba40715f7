package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
	"github.com/tesoroschoco/marketplace-api/internal/orders"
	"github.com/tesoroschoco/marketplace-api/internal/products"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// registerSellerRoutes mounts the approved-seller surface: product CRUD and
// order fulfillment.
func registerSellerRoutes(r *gin.Engine, d *deps) {
	g := r.Group("/seller", d.mw.Authenticate(), auth.Require(auth.Requirement{
		Roles:           []string{users.RoleSeller},
		RequireApproved: true,
	}))

	g.GET("/products", func(c *gin.Context) {
		list, err := d.products.ListBySeller(c.Request.Context(), auth.Profile(c).UserID)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load products")
			return
		}
		if list == nil {
			list = []products.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
	})

	g.POST("/products", func(c *gin.Context) {
		var req validation.CreateProductRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		profile := auth.Profile(c)
		sellerName := profile.BusinessName
		if sellerName == "" {
			sellerName = profile.Name
		}
		p := products.Product{
			ProductID:   uuid.NewString(),
			SellerID:    profile.UserID,
			SellerName:  sellerName,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
			Category:    req.Category,
			Images:      req.Images,
			IsActive:    true,
		}
		if err := d.products.Create(c.Request.Context(), p); err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not create product")
			return
		}
		logging.Log(logging.Fields{
			Service:   "seller",
			Event:     "product_created",
			UserID:    profile.UserID,
			ProductID: p.ProductID,
		})
		c.JSON(http.StatusCreated, gin.H{"product": p})
	})

	g.PUT("/products/:id", func(c *gin.Context) {
		var req validation.UpdateProductRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		fields := map[string]interface{}{}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.Description != nil {
			fields["description"] = *req.Description
		}
		if req.Price != nil {
			fields["price"] = *req.Price
		}
		if req.Stock != nil {
			fields["stock"] = *req.Stock
		}
		if req.Category != nil {
			fields["category"] = *req.Category
		}
		if req.Images != nil {
			fields["images"] = *req.Images
		}
		if req.IsActive != nil {
			fields["is_active"] = *req.IsActive
		}

		productID := c.Param("id")
		uid := auth.Profile(c).UserID
		if err := d.products.Update(c.Request.Context(), productID, uid, fields); err != nil {
			respondOwnershipError(c, err)
			return
		}

		updated, err := d.products.Get(c.Request.Context(), productID)
		if err != nil || updated == nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not reload product")
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": updated})
	})

	g.DELETE("/products/:id", func(c *gin.Context) {
		productID := c.Param("id")
		uid := auth.Profile(c).UserID

		// A product referenced by an order a buyer is still waiting on must
		// stay readable; deactivate instead of delete in that case.
		open, err := d.sellerHasOpenItems(c, uid, productID)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not check open orders")
			return
		}
		if open {
			respondError(c, http.StatusConflict, "PRODUCT_HAS_OPEN_ORDERS",
				"product has pending or processing order items; deactivate it instead")
			return
		}

		if err := d.products.Delete(c.Request.Context(), productID, uid); err != nil {
			respondOwnershipError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	})

	g.GET("/orders", func(c *gin.Context) {
		list, err := d.orders.ListBySeller(c.Request.Context(), auth.Profile(c).UserID)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load orders")
			return
		}
		if list == nil {
			list = []orders.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
	})

	g.PUT("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateOrderStatusRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		tracking := ""
		if req.TrackingNumber != nil {
			tracking = *req.TrackingNumber
		}
		uid := auth.Profile(c).UserID
		updated, err := d.orders.UpdateSellerItems(c.Request.Context(), c.Param("id"), uid, req.Status, tracking)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrNotFound):
				respondError(c, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found")
			case errors.Is(err, orders.ErrNoSellerItems):
				respondError(c, http.StatusForbidden, "FORBIDDEN", "no items in this order belong to you")
			case errors.Is(err, orders.ErrBadTransition):
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			case errors.Is(err, orders.ErrConflict):
				respondError(c, http.StatusConflict, "CONFLICT", "order modified concurrently, retry")
			default:
				respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update order")
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": updated.SellerView(uid)})
	})
}

// sellerHasOpenItems reports whether any of the seller's orders still has a
// pending or processing item for the product.
func (d *deps) sellerHasOpenItems(c *gin.Context, sellerID, productID string) (bool, error) {
	list, err := d.orders.ListBySeller(c.Request.Context(), sellerID)
	if err != nil {
		return false, err
	}
	for i := range list {
		if list[i].HasOpenItemsFor(productID) {
			return true, nil
		}
	}
	return false, nil
}

func respondOwnershipError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, products.ErrNotFound):
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
	case errors.Is(err, products.ErrNotOwner):
		respondError(c, http.StatusForbidden, "FORBIDDEN", "product belongs to another seller")
	default:
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update product")
	}
}
