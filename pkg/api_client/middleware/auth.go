package middleware

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/problem"
)

const (
	userIDKey = "user_id"
	emailKey  = "user_email"
	roleKey   = "user_role"
)

// RequireUser verifies a Supabase access token (HS256) and stores the
// subject, email and role on the context.
func RequireUser(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, problem.NewUnauthorized("Missing or invalid Authorization header"))
			return
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(strings.TrimPrefix(authHeader, "Bearer "), claims, keyFunc)
		if err != nil || !token.Valid {
			abort(c, problem.NewUnauthorized("Invalid access token"))
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			abort(c, problem.NewUnauthorized("Access token has no subject"))
			return
		}
		email, _ := claims["email"].(string)

		c.Set(userIDKey, sub)
		c.Set(emailKey, email)
		c.Set(roleKey, roleFromClaims(claims))
		c.Next()
	}
}

// roleFromClaims prefers app_metadata.role over the top-level role, which
// Supabase always sets to "authenticated".
func roleFromClaims(claims jwt.MapClaims) string {
	if meta, ok := claims["app_metadata"].(map[string]interface{}); ok {
		if role, ok := meta["role"].(string); ok && role != "" {
			return role
		}
	}
	role, _ := claims["role"].(string)
	return role
}

// RequireRole must run after RequireUser.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Role(c) != role {
			abort(c, problem.NewForbidden(fmt.Sprintf("requires role %s", role)))
			return
		}
		c.Next()
	}
}

// RequireWebhookKey compares header against expected in constant time. An
// empty expected key disables the check.
func RequireWebhookKey(header, expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			abort(c, problem.NewUnauthorized("invalid webhook key"))
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func Email(c *gin.Context) string {
	return c.GetString(emailKey)
}

func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}

func abort(c *gin.Context, apiErr problem.APIError) {
	c.Header("Content-Type", "application/problem+json")
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

