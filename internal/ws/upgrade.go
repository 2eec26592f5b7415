package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lexpost/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// StaffResolver reports whether the verified user receives every staff-visible event.
// It is resolved against the stored profile, not the token's claim.
type StaffResolver func(ctx context.Context, uc *auth.UserContext) (bool, error)

// ServeEvents upgrades GET /ws/events?token=... into the user's change stream.
// The token is verified before the upgrade so failures are plain HTTP 401s.
func ServeEvents(idp auth.IdentityProvider, hub *Hub, isStaff StaffResolver, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		uc, err := idp.GetUserContext(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		staff, err := isStaff(c.Request.Context(), uc)
		if err != nil {
			log.Error("failed to resolve event stream role", "user_id", uc.ID, "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug("websocket upgrade failed", "user_id", uc.ID, "error", err)
			return
		}
		defer conn.Close()

		client := NewClient(uc.ID, staff)
		hub.Register(client)
		defer client.Close()
		log.Debug("event stream opened", "user_id", uc.ID, "staff", client.Staff)

		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames; the stream is server-to-client only.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
