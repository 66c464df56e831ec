package websocket

import (
	"ai-research-be/internal/service"

	"github.com/gofiber/websocket/v2"
)

// ServeWs binds a websocket connection to a session and starts its pumps.
func ServeWs(hub *Hub, c *websocket.Conn, sessionID string, dispatcher service.IEnvelopeDispatcher) {
	client := &Client{
		Hub:        hub,
		Conn:       c,
		SessionID:  sessionID,
		Send:       make(chan []byte, 256),
		dispatcher: dispatcher,
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // blocks for the lifetime of the connection
}
