package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/auth"
	"agrolink/api/internal/services"
)

// ContextKeyActor is where the authenticated services.Actor is stored.
const ContextKeyActor = "actor"

// bearerActor resolves an Authorization header into the calling actor.
func bearerActor(header, secret string) (services.Actor, *apperr.Error) {
	if header == "" {
		return services.Actor{}, apperr.Unauthorized("Authorization header required")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return services.Actor{}, apperr.Unauthorized("Authorization header format must be Bearer {token}")
	}

	claims, err := auth.ValidateJWT(strings.TrimSpace(token), secret)
	if err != nil {
		return services.Actor{}, apperr.New(http.StatusUnauthorized, "Invalid or expired token", err)
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return services.Actor{}, apperr.Unauthorized("Invalid token subject")
	}
	return services.Actor{ID: id, Role: claims.Role}, nil
}

// AuthMiddleware rejects requests without a valid Bearer token.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, appErr := bearerActor(c.GetHeader("Authorization"), jwtSecret)
		if appErr != nil {
			Abort(c, appErr)
			return
		}
		c.Set(ContextKeyActor, actor)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is sent and lets
// anonymous requests through otherwise.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, appErr := bearerActor(c.GetHeader("Authorization"), jwtSecret); appErr == nil {
			c.Set(ContextKeyActor, actor)
		}
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor, ok := ActorFrom(c); !ok || !actor.IsAdmin() {
			Abort(c, apperr.Forbidden("Administrator privileges required"))
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (services.Actor, bool) {
	actor, ok := c.Value(ContextKeyActor).(services.Actor)
	return actor, ok
}

// Abort stops the chain and writes the standard failure body.
func Abort(c *gin.Context, err *apperr.Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": err.Message})
}
