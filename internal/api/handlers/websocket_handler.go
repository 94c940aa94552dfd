// server/internal/api/handlers/websocket_handler.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vital-route-api-server/internal/auth"
	"vital-route-api-server/internal/dispatch"
	"vital-route-api-server/internal/socket"
	"vital-route-api-server/internal/store"
)

// Maximum wait for a message (or ping) from the client.
const pongWait = 60 * time.Second

type WebSocketHandler struct {
	Hub      *socket.Hub
	Tokens   *auth.Manager
	Users    store.UserStore
	Dispatch *dispatch.Service
	Upgrader websocket.Upgrader
}

// ServeWs upgrades the connection and streams the caller's role snapshots until
// either side goes away. Closing the connection releases the feed subscription.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}
	claims, err := h.Tokens.ParseJWT(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	user, err := h.Users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	session, err := h.Dispatch.Session(user)
	if err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Unknown role. Please contact support."})
		return
	}

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade connection")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := h.Hub.Register(user.ID, user.Role, conn)
	defer func() {
		cancel()
		h.Hub.Unregister(client)
		conn.Close()
	}()

	sub, err := session.Watch(ctx)
	if err != nil {
		log.WithError(err).WithField("userId", user.ID).Error("feed subscribe failed")
		return
	}
	defer sub.Close()

	go client.WritePump(ctx)
	go func() {
		for snap := range sub.Updates() {
			if err := client.SendLatest("snapshot", snap); err != nil {
				log.WithError(err).Warn("websocket: marshal snapshot")
			}
		}
	}()

	// A dead write pump means the peer is gone; unblock the read loop.
	go func() {
		<-client.Done()
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).WithField("userId", user.ID).Debug("websocket closed unexpectedly")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
