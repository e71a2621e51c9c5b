package hub

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Per-client outbound buffer.
	sendBufferSize = 256
)

// Client is one live WebSocket session bound to an authenticated user. A
// client may belong to any number of rooms at once; membership lives entirely
// in the hub's Registry, not here.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID string
	userID uint
	send   chan []byte
}

// NewClient creates a client for an upgraded connection. The connection id is
// only used for logging and diagnostics.
func NewClient(h *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		connID: uuid.NewString(),
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func (c *Client) UserID() uint   { return c.userID }
func (c *Client) ConnID() string { return c.connID }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// CloseConn force-closes the underlying connection.
func (c *Client) CloseConn() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"conn_id": c.connID, "user_id": c.userID})
}

// readPump pumps frames from the WebSocket connection into the hub's message
// channel. It runs in its own goroutine; on exit it requests unregistration,
// which detaches the client from every room it had joined.
func (c *Client) readPump() {
	defer func() {
		// The hub loop always drains messageChan until done is closed, so
		// this send either lands or the hub is stopping and detaches every
		// client itself.
		unregister := HubMessage{Type: HubMsgUnregister, Client: c}
		select {
		case c.hub.messageChan <- unregister:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.logCtx().Info("readPump exited, client unregistered")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}

		msg := HubMessage{Type: HubMsgEvent, Client: c, RawData: frame}
		select {
		case c.hub.messageChan <- msg:
		default:
			// Hub overloaded; a dropped event must not kill the connection.
			c.logCtx().Warn("Hub message channel full, dropping client event")
		}
	}
}

// writePump pumps frames from the send channel to the WebSocket connection
// and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel during unregistration.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}
