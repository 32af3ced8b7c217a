// README: Auth middleware verifying shared-secret JWTs from the Authorization header or the token query.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridesim/internal/infra"
)

const (
	ctxKeyUID    = "auth_uid"
	ctxKeyClaims = "auth_claims"
)

// Auth rejects requests without a valid token: 401 when none is presented,
// 403 when verification fails. WebSocket upgrades may pass ?token= instead
// of a header since browsers cannot set one.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" && isUpgrade(c.Request) {
			raw = c.Query("token")
		}
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
			return
		}

		token, err := verifier.VerifyToken(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(ctxKeyUID, token.UID)
		c.Set(ctxKeyClaims, token.Claims)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxKeyUID)
}

func CallerClaims(c *gin.Context) map[string]interface{} {
	v, ok := c.Get(ctxKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(map[string]interface{})
	return claims
}

// CallerRole defaults to rider when the token carries no role claim.
func CallerRole(c *gin.Context) string {
	if role, ok := CallerClaims(c)["role"].(string); ok && role != "" {
		return role
	}
	return "rider"
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}
