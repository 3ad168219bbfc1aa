package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"movierec/pkg/models"
)

const CtxIdentityKey = "auth_identity"

// OptionalIdentity attaches the caller identity when a valid bearer token
// is present. Missing or bad tokens leave the request anonymous.
func OptionalIdentity(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := models.Anonymous
		if raw, ok := bearer(c.GetHeader("Authorization")); ok {
			if claims, err := tokens.Parse(raw); err == nil {
				ident = claims.Identity()
			}
		}
		c.Set(CtxIdentityKey, ident)
		c.Next()
	}
}

// RequireIdentity rejects anonymous callers. It must run after
// OptionalIdentity.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IdentityFrom(c).Authenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff rejects callers whose token lacks the staff claim.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := IdentityFrom(c)
		if !ident.Authenticated {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}
		if !ident.Staff {
			c.JSON(http.StatusForbidden, gin.H{"error": "staff only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) models.Identity {
	v, ok := c.Get(CtxIdentityKey)
	if !ok {
		return models.Anonymous
	}
	ident, _ := v.(models.Identity)
	return ident
}

func bearer(h string) (string, bool) {
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(h[len("Bearer "):])
	return raw, raw != ""
}
