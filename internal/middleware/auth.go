package middleware

import (
	"errors"
	"net/http"
	"strings"

	"orderflow/internal/model"
	"orderflow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

var (
	ErrMissingToken = errors.New("authorization is missing")
	ErrInvalidToken = errors.New("invalid token")
)

// ParseActor validates an HS256 token from the identity provider and maps
// its claims to the caller identity. Expected claims: sub, name, role and
// an optional manager_id (absent or null for top-level management).
func ParseActor(tokenString string, secret []byte) (model.Actor, error) {
	if tokenString == "" {
		return model.Actor{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return model.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.Actor{}, ErrInvalidToken
	}

	uid, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if uid == "" || !model.Role(role).Valid() {
		return model.Actor{}, ErrInvalidToken
	}

	actor := model.Actor{UID: uid, Role: model.Role(role)}
	actor.Name, _ = claims["name"].(string)
	if mid, ok := claims["manager_id"].(string); ok && mid != "" {
		actor.ManagerID = &mid
	}
	return actor, nil
}

// Authenticate resolves the caller from the bearer token (or the
// access_token cookie) and stores it on the context.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authorization format. Expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		actor, err := ParseActor(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}

		c.Set(actorKey, actor)
		c.Set("user_id", actor.UID)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not listed. Top-level
// management always passes.
func RequireRole(allowedRoles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}
		if actor.IsTopLevel() {
			c.Next()
			return
		}
		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient permissions"))
	}
}

// ActorFrom returns the caller stored by Authenticate
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
