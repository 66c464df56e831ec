package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/protocol"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// clusterChannel carries frames between instances so a notification reaches
// a session regardless of which instance holds its connection.
const clusterChannel = "cluster_events"

type Hub struct {
	// id marks frames this instance published so the Redis subscription can
	// skip them; local delivery already happened.
	id string

	// Registered clients map: session ID -> connections (multi-tab)
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out. Nil in single-node mode.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		id:         uuid.NewString(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session fully disconnected", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Notify delivers an envelope to every connection of one session.
func (h *Hub) Notify(sessionID string, env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal envelope", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	clients, localFound := h.clients[sessionID]
	h.mu.RUnlock()

	if localFound {
		for _, client := range clients {
			h.trySend(client, data)
		}
	}

	// Publish regardless: another instance may hold connections for the
	// same session.
	if h.rdb != nil {
		payload, _ := json.Marshal(clusterFrame{Origin: h.id, TargetSession: sessionID, Message: data})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

// Broadcast delivers an envelope to every connected session.
func (h *Hub) Broadcast(env *protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal envelope", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mu.RLock()
	for _, clients := range h.clients {
		for _, client := range clients {
			h.trySend(client, data)
		}
	}
	h.mu.RUnlock()

	if h.rdb != nil {
		payload, _ := json.Marshal(clusterFrame{Origin: h.id, TargetSession: "*", Message: data})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

func (h *Hub) trySend(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"session_id": client.SessionID,
		})
		go func() { h.unregister <- client }()
	}
}

type clusterFrame struct {
	Origin        string          `json:"origin"`
	TargetSession string          `json:"target_session"`
	Message       json.RawMessage `json:"message"`
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var frame clusterFrame
		if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			h.logger.Warn("Hub", "Undecodable cluster frame", map[string]interface{}{"error": err.Error()})
			continue
		}
		h.deliverClusterFrame(frame)
	}
}

// deliverClusterFrame fans a cross-instance frame out to local connections.
// Frames this instance published are skipped: their local delivery already
// happened before the publish.
func (h *Hub) deliverClusterFrame(frame clusterFrame) {
	if frame.Origin == h.id {
		return
	}

	if frame.TargetSession == "*" {
		h.mu.RLock()
		for _, clients := range h.clients {
			for _, client := range clients {
				h.trySend(client, frame.Message)
			}
		}
		h.mu.RUnlock()
		return
	}

	h.mu.RLock()
	clients, ok := h.clients[frame.TargetSession]
	h.mu.RUnlock()
	if ok {
		for _, client := range clients {
			h.trySend(client, frame.Message)
		}
	}
}
