package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// bearerToken reads the Authorization header, falling back to the token
// query param since browsers cannot set headers on websocket upgrades.
func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ctx.Query("token")
}

func parseToken(tokenStr string, secret string) (*jwt.StandardClaims, error) {
	claims := &jwt.StandardClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	// StandardClaims.Valid allows a missing exp
	if claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("token has no expiry")
	}
	return claims, nil
}

func (m ApiHandler) authMiddleware(ctx *gin.Context) {
	tokenStr := bearerToken(ctx)
	if tokenStr == "" {
		returnErrorJsonCode(fmt.Errorf("missing bearer token"), ctx, http.StatusUnauthorized)
		return
	}
	claims, err := parseToken(tokenStr, m.JWTSecret)
	if err != nil {
		returnErrorJsonCode(err, ctx, http.StatusUnauthorized)
		return
	}
	ctx.Set("subject", claims.Subject)
	ctx.Next()
}
