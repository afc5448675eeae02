package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fabworks/fabworks-auth/internal/jwt"
	"github.com/fabworks/fabworks-auth/internal/service"
)

const identityKey = "authIdentity"

// Auth validates the Authorization header and attaches the verified
// identity. Token signature and expiry are checked first, then the
// session behind the token must still be live.
type Auth struct {
	AuthService *service.AuthService
}

// ValidateBearer ensures the request carries a valid bearer token backed
// by a live session.
func (m *Auth) ValidateBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authorization header required."})
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Bearer token required."})
		return
	}

	identity, err := m.AuthService.Authenticate(c.Request.Context(), parts[1])
	if err != nil {
		if authErr, ok := err.(*service.AuthError); ok {
			c.AbortWithStatusJSON(authErr.Status, gin.H{"error": authErr.Code, "error_description": authErr.Description})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
		return
	}

	c.Set(identityKey, identity)
	c.Next()
}

// GetIdentity exposes the verified identity to handlers.
func GetIdentity(c *gin.Context) (*jwt.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*jwt.Identity)
	return identity, ok
}
