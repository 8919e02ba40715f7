package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/users"
)

const profileContextKey = "authProfile"

// Middleware ties token verification and profile loading into Gin.
type Middleware struct {
	verifier *Verifier
	users    *users.Store
}

func NewMiddleware(verifier *Verifier, usersStore *users.Store) *Middleware {
	return &Middleware{verifier: verifier, users: usersStore}
}

// Authenticate verifies the bearer token and loads the caller's profile into
// the request context. A verified identity without a stored profile is a 404:
// the client must finish registration first.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "missing bearer token",
			})
			return
		}

		identity, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "UNAUTHORIZED",
					"message": "invalid or expired token",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "SERVICE_UNAVAILABLE",
				"message": "identity provider unavailable",
			})
			return
		}

		profile, err := m.users.Get(c.Request.Context(), identity.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "SERVICE_UNAVAILABLE",
				"message": "profile lookup failed",
			})
			return
		}
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error":   "USER_NOT_FOUND",
				"message": "no profile for this account",
			})
			return
		}

		c.Set(profileContextKey, profile)
		c.Next()
	}
}

// Require enforces a capability requirement; must run after Authenticate.
func Require(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := Profile(c)
		if profile == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "UNAUTHORIZED",
				"message": "authentication required",
			})
			return
		}
		if denial := Check(profile, req); denial != nil {
			c.AbortWithStatusJSON(denial.Status, gin.H{
				"error":   denial.Code,
				"message": denial.Message,
			})
			return
		}
		c.Next()
	}
}

// Profile returns the authenticated caller's profile, or nil outside an
// authenticated route.
func Profile(c *gin.Context) *users.UserProfile {
	v, ok := c.Get(profileContextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*users.UserProfile)
	return p
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
