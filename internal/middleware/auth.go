package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/filblog/backend/internal/apperr"
	"github.com/emilythestrangee/filblog/backend/internal/auth"
)

// WalletKey is the gin context key holding the signed-in wallet address.
const WalletKey = "wallet_address"

// AuthMiddleware rejects requests without a valid Bearer token.
func AuthMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, issuer)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  apperr.CodeUnauthorized,
			})
			return
		}
		c.Set(WalletKey, claims.WalletAddress)
		c.Next()
	}
}

// OptionalAuth sets the wallet when a valid token is present and never rejects.
func OptionalAuth(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, issuer); ok {
			c.Set(WalletKey, claims.WalletAddress)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, issuer *auth.Issuer) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(token) == "" {
		return nil, false
	}
	claims, err := issuer.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Wallet returns the wallet set by the auth middleware.
func Wallet(c *gin.Context) (string, bool) {
	w := c.GetString(WalletKey)
	return w, w != ""
}
