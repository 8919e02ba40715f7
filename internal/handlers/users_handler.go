package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// registerUserRoutes mounts the profile surface for any authenticated user.
func registerUserRoutes(r *gin.Engine, d *deps) {
	g := r.Group("/users", d.mw.Authenticate(), auth.Require(auth.Requirement{}))

	g.GET("/profile", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": auth.Profile(c)})
	})

	g.PUT("/profile", func(c *gin.Context) {
		var req validation.UpdateProfileRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		fields := map[string]interface{}{}
		if req.Name != nil {
			fields["name"] = *req.Name
		}
		if req.Phone != nil {
			fields["phone"] = *req.Phone
		}
		if req.Address != nil {
			fields["address"] = *req.Address
		}
		if req.Bio != nil {
			fields["bio"] = *req.Bio
		}

		uid := auth.Profile(c).UserID
		if err := d.users.UpdateFields(c.Request.Context(), uid, fields); err != nil {
			if errors.Is(err, users.ErrNotFound) {
				respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "profile not found")
				return
			}
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not update profile")
			return
		}

		updated, err := d.users.Get(c.Request.Context(), uid)
		if err != nil || updated == nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not reload profile")
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": updated})
	})

	g.POST("/register-seller", func(c *gin.Context) {
		profile := auth.Profile(c)
		if profile.Role != users.RoleBuyer {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "only buyer accounts can apply to sell")
			return
		}

		var req validation.RegisterSellerRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		fields := map[string]interface{}{
			"role":          users.RolePendingVendor,
			"is_approved":   false,
			"business_name": req.BusinessName,
			"phone":         req.Phone,
			"address":       req.Address,
		}
		if req.Bio != "" {
			fields["bio"] = req.Bio
		}
		if err := d.users.UpdateFields(c.Request.Context(), profile.UserID, fields); err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not submit application")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "seller application submitted",
			"status":  users.RolePendingVendor,
		})
	})
}
