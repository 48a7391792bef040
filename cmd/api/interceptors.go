package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/PaulBabatuyi/startsmart/internal/auth"
)

// context key for storing auth claims on the gin context
const claimsKey = "auth_claims"

// getClaims extracts auth claims from the context, if present.
func getClaims(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// callerID returns the authenticated user's id. authenticate guarantees it parses.
func callerID(c *gin.Context) bson.ObjectID {
	claims, _ := getClaims(c)
	id, _ := claims.ObjectID()
	return id
}

// authenticate enforces a valid bearer token and stores its claims for handlers.
func authenticate(j *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthenticated(c, "Missing authorization header")
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortUnauthenticated(c, "Invalid authorization header")
			return
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			abortUnauthenticated(c, "Invalid or expired token")
			return
		}
		if _, err := claims.ObjectID(); err != nil {
			abortUnauthenticated(c, "Invalid token subject")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
		Success: false,
		Message: msg,
		Error:   "UNAUTHENTICATED",
	})
}
