// Package websocket upgrades authenticated HTTP requests and hands the
// resulting connections to the hub.
package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"eldercare-comm/internal/hub"
	"eldercare-comm/internal/middleware"
)

// WebSocketHandler handles the /ws endpoint.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler creates the handler.
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// TODO: restrict origins once the client deployment origin is fixed.
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return &WebSocketHandler{upgrader: upgrader, hub: h}
}

// HandleConnection upgrades the request and registers the client with the
// hub. Room membership is driven afterwards by join-room events; a fresh
// connection belongs to no room.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userID, ok := middleware.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn, userID)
	registerMsg := hub.HubMessage{Type: hub.HubMsgRegister, Client: client}
	if !h.hub.QueueMessage(registerMsg) {
		logCtx.Error("WS Handler: hub message channel full, failed to register client")
		client.CloseConn()
		return
	}

	client.Run()
	logCtx.WithField("conn_id", client.ConnID()).Info("WS Handler: client connected")
}
