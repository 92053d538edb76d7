package realtime

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/auth"
	"agrolink/api/internal/config"
	"agrolink/api/internal/services"
)

// checkOrigin allows requests without an Origin header (non-browser
// clients) and browser requests from the configured origins.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func tokenFrom(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// ServeWS authenticates the caller from ?token= or a Bearer header and
// upgrades the connection. The client starts in its user room.
func ServeWS(hub *Hub, dispatcher *Dispatcher, cfg *config.Config) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
	}

	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authentication token required"})
			return
		}
		claims, err := auth.ValidateJWT(token, cfg.JwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token subject"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response.
			log.Printf("WebSocket upgrade failed for user %s: %v", userID.Hex(), err)
			return
		}

		client := NewClient(hub, services.Actor{ID: userID, Role: claims.Role}, conn)
		hub.Register(client)
		hub.Join(client, services.UserRoom(userID))
		log.Printf("WebSocket client %s connected for user %s", client.ID, userID.Hex())
		client.Run(dispatcher)
	}
}
