package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/auth"
	"github.com/tesoroschoco/marketplace-api/internal/users"
	"github.com/tesoroschoco/marketplace-api/internal/validation"
)

// registerAuthRoutes mounts token verification and profile bootstrap.
func registerAuthRoutes(r *gin.Engine, d *deps) {
	// verify-token is the client's session check: valid token plus an
	// existing profile.
	r.POST("/auth/verify-token", d.mw.Authenticate(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": auth.Profile(c)})
	})

	// register bootstraps a profile for a freshly verified identity, so it
	// verifies the token itself instead of going through Authenticate (which
	// 404s on a missing profile).
	r.POST("/auth/register", func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		identity, err := d.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or expired token")
				return
			}
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "identity provider unavailable")
			return
		}

		var req validation.RegisterRequest
		if err := validation.BindAndValidate(c, &req, d.validate); err != nil {
			return
		}

		profile := users.UserProfile{
			UserID: identity.UserID,
			Email:  identity.Email,
			Name:   req.Name,
			Role:   users.RoleBuyer,
		}
		created, err := d.users.Create(c.Request.Context(), profile)
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not create profile")
			return
		}
		if !created {
			// registration is idempotent: an existing profile wins
			existing, err := d.users.Get(c.Request.Context(), identity.UserID)
			if err != nil || existing == nil {
				respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "profile lookup failed")
				return
			}
			c.JSON(http.StatusOK, gin.H{"user": existing})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": profile})
	})
}
