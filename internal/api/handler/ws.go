package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatwire/backend/internal/chathub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checks are left to the reverse proxy.
		return true
	},
}

// ServeWebSocket authenticates the request and hands the upgraded connection
// to the hub. The token is checked before the upgrade so an invalid one gets
// a plain 401 instead of a websocket close frame.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	identity, err := h.Auth.VerifyToken(bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed for user %s: %v", identity.ID, err)
		return
	}

	client := chathub.NewWebSocketClient(conn, identity, h.Hub)
	if err := h.Hub.Connect(client); err != nil {
		log.Printf("ERROR: registering connection for user %s: %v", identity.ID, err)
		conn.Close()
		return
	}
	client.Run()
}
