package websocket

import (
	"context"
	"encoding/json"
	"time"

	"ai-research-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clarification answers can carry whole paragraphs.
	maxMessageSize = 64 * 1024
)

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// SessionID this connection is scoped to.
	SessionID string

	// Buffered channel of outbound frames.
	Send chan []byte

	dispatcher service.IEnvelopeDispatcher
}

// readPump pumps inbound frames through the dispatcher and queues the
// response back to the same connection.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected close", map[string]interface{}{
					"session_id": c.SessionID,
					"error":      err.Error(),
				})
			}
			break
		}

		response := c.dispatcher.Dispatch(context.Background(), raw)
		data, err := json.Marshal(response)
		if err != nil {
			c.Hub.logger.Error("Hub", "Failed to marshal response", map[string]interface{}{"error": err.Error()})
			continue
		}
		c.Hub.trySend(c, data)
	}
}

// writePump pumps frames from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
