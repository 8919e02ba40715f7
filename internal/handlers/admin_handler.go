package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/logging"
	"github.com/tesoroschoco/marketplace-api/internal/notifications"
	"github.com/tesoroschoco/marketplace-api/internal/products"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// registerAdminRoutes mounts the moderation surface. Every moderation action
// records the acting admin and emits a notification for the affected user.
func registerAdminRoutes(r *gin.Engine, d *deps) {
	g := r.Group("/admin", d.mw.Authenticate(), auth.Require(auth.Requirement{
		Roles: []string{users.RoleAdmin},
	}))

	g.GET("/users", func(c *gin.Context) {
		list, err := d.users.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load users")
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
	})

	g.GET("/sellers/pending", func(c *gin.Context) {
		list, err := d.users.PendingVendors(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load pending sellers")
			return
		}
		c.JSON(http.StatusOK, gin.H{"sellers": list, "count": len(list)})
	})

	g.GET("/products/reported", func(c *gin.Context) {
		list, err := d.products.ListReported(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load reported products")
			return
		}
		if list == nil {
			list = []products.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
	})

	g.PUT("/users/:id/approve", func(c *gin.Context) {
		target, ok := d.loadTargetUser(c)
		if !ok {
			return
		}
		if target.Role != users.RolePendingVendor {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user has no pending seller application")
			return
		}
		d.moderateUser(c, target, map[string]interface{}{
			"role":        users.RoleSeller,
			"is_approved": true,
		}, notifications.Event{
			Type:      notifications.EventSellerApproved,
			Recipient: target.Email,
			Subject:   "Your seller account was approved",
			Data:      map[string]string{"business_name": target.BusinessName},
		})
	})

	g.PUT("/users/:id/reject", func(c *gin.Context) {
		target, ok := d.loadTargetUser(c)
		if !ok {
			return
		}
		if target.Role != users.RolePendingVendor {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user has no pending seller application")
			return
		}
		reason, ok := bindReason(c, d)
		if !ok {
			return
		}
		d.moderateUser(c, target, map[string]interface{}{
			"role":        users.RoleBuyer,
			"is_approved": false,
		}, notifications.Event{
			Type:      notifications.EventSellerRejected,
			Recipient: target.Email,
			Subject:   "Your seller application was not approved",
			Data:      map[string]string{"reason": reason},
		})
	})

	g.PUT("/users/:id/suspend", func(c *gin.Context) {
		target, ok := d.loadTargetUser(c)
		if !ok {
			return
		}
		if target.Role == users.RoleAdmin {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "admin accounts cannot be suspended")
			return
		}
		reason, ok := bindReason(c, d)
		if !ok {
			return
		}
		d.moderateUser(c, target, map[string]interface{}{
			"suspended": true,
		}, notifications.Event{
			Type:      notifications.EventAccountSuspended,
			Recipient: target.Email,
			Subject:   "Your account was suspended",
			Data:      map[string]string{"reason": reason},
		})
	})

	g.PUT("/users/:id/reactivate", func(c *gin.Context) {
		target, ok := d.loadTargetUser(c)
		if !ok {
			return
		}
		d.moderateUser(c, target, map[string]interface{}{
			"suspended": false,
		}, notifications.Event{
			Type:      notifications.EventAccountReactivated,
			Recipient: target.Email,
			Subject:   "Your account was reactivated",
		})
	})

	g.PUT("/products/:id/suspend", func(c *gin.Context) {
		reason, ok := bindReason(c, d)
		if !ok {
			return
		}
		d.moderateProduct(c, map[string]interface{}{
			"is_active":   false,
			"is_reported": true,
		}, notifications.EventProductSuspended, "A product listing was suspended", reason)
	})

	g.PUT("/products/:id/reactivate", func(c *gin.Context) {
		d.moderateProduct(c, map[string]interface{}{
			"is_active":   true,
			"is_reported": false,
		}, notifications.EventProductReactivated, "A product listing was reactivated", "")
	})

	g.GET("/stats", func(c *gin.Context) {
		allUsers, err := d.users.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load users")
			return
		}
		allProducts, err := d.products.List(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load products")
			return
		}

		stats := gin.H{
			"totalUsers":       len(allUsers),
			"buyers":           0,
			"sellers":          0,
			"pendingSellers":   0,
			"suspendedUsers":   0,
			"totalProducts":    len(allProducts),
			"activeProducts":   0,
			"reportedProducts": 0,
		}
		for _, u := range allUsers {
			switch u.Role {
			case users.RoleBuyer:
				stats["buyers"] = stats["buyers"].(int) + 1
			case users.RoleSeller:
				stats["sellers"] = stats["sellers"].(int) + 1
			case users.RolePendingVendor:
				stats["pendingSellers"] = stats["pendingSellers"].(int) + 1
			}
			if u.Suspended {
				stats["suspendedUsers"] = stats["suspendedUsers"].(int) + 1
			}
		}
		for _, p := range allProducts {
			if p.IsActive {
				stats["activeProducts"] = stats["activeProducts"].(int) + 1
			}
			if p.IsReported {
				stats["reportedProducts"] = stats["reportedProducts"].(int) + 1
			}
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	})
}

// loadTargetUser resolves the :id path param to a profile, writing the 404
// itself on a miss.
func (d *deps) loadTargetUser(c *gin.Context) (*users.UserProfile, bool) {
	target, err := d.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load user")
		return nil, false
	}
	if target == nil {
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		return nil, false
	}
	return target, true
}

// bindReason reads the optional moderation reason; an absent body is fine.
func bindReason(c *gin.Context, d *deps) (string, bool) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return "", true
	}
	var req validation.ReasonRequest
	if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
		return "", false
	}
	return req.Reason, true
}

func (d *deps) moderateUser(c *gin.Context, target *users.UserProfile, fields map[string]interface{}, event notifications.Event) {
	actor := auth.Profile(c)
	if err := d.users.UpdateFields(c.Request.Context(), target.UserID, fields); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update user")
		return
	}

	if event.Data == nil {
		event.Data = map[string]string{}
	}
	event.Data["actor_id"] = actor.UserID
	event.Data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	d.notifier.PublishAsync(c.Request.Context(), event)
	d.countEvent(c, "AdminModeration")

	logging.Log(logging.Fields{
		Service: "admin",
		Event:   event.Type,
		UserID:  target.UserID,
		Message: "moderation by " + actor.UserID,
	})
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func (d *deps) moderateProduct(c *gin.Context, fields map[string]interface{}, eventType, subject, reason string) {
	actor := auth.Profile(c)
	productID := c.Param("id")

	p, err := d.products.Get(c.Request.Context(), productID)
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load product")
		return
	}
	if p == nil {
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
		return
	}

	if err := d.products.SetModeration(c.Request.Context(), productID, fields); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
			return
		}
		respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update product")
		return
	}

	// notify the product's owner
	owner, err := d.users.Get(c.Request.Context(), p.SellerID)
	if err == nil && owner != nil {
		d.notifier.PublishAsync(c.Request.Context(), notifications.Event{
			Type:      eventType,
			Recipient: owner.Email,
			Subject:   subject,
			Data: map[string]string{
				"product_name": p.Name,
				"reason":       reason,
				"actor_id":     actor.UserID,
				"timestamp":    time.Now().UTC().Format(time.RFC3339),
			},
		})
	}

	d.countEvent(c, "AdminModeration")
	logging.Log(logging.Fields{
		Service:   "admin",
		Event:     eventType,
		ProductID: productID,
		Message:   "moderation by " + actor.UserID,
	})
	c.JSON(http.StatusOK, gin.H{"message": "product updated"})
}
