package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"ai-research-be/internal/pkg/logger"
	"ai-research-be/internal/protocol"
)

func newTestHub() *Hub {
	h := NewHub(nil, logger.NewNopLogger())
	go h.Run()
	return h
}

func registerClient(t *testing.T, h *Hub, sessionID string) *Client {
	t.Helper()
	client := &Client{Hub: h, SessionID: sessionID, Send: make(chan []byte, 8)}
	h.register <- client

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.RLock()
		_, ok := h.clients[sessionID]
		h.mu.RUnlock()
		if ok {
			return client
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("client never registered")
	return nil
}

func receiveFrame(t *testing.T, client *Client) []byte {
	t.Helper()
	select {
	case data := <-client.Send:
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func assertNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.Send:
		t.Fatalf("unexpected frame delivered: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNotifyDeliversToSessionConnections(t *testing.T) {
	h := newTestHub()
	client := registerClient(t, h, "s1")
	other := registerClient(t, h, "s2")

	h.Notify("s1", protocol.NewNotification("workflow.progress", map[string]interface{}{"stage": "research"}))

	var env protocol.Envelope
	if err := json.Unmarshal(receiveFrame(t, client), &env); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if env.Method != "workflow.progress" {
		t.Errorf("method = %q, want workflow.progress", env.Method)
	}
	assertNoFrame(t, other)
}

func TestOwnClusterFrameIsNotRedelivered(t *testing.T) {
	h := newTestHub()
	client := registerClient(t, h, "s1")

	data, _ := json.Marshal(protocol.NewNotification("workflow.progress", nil))
	h.deliverClusterFrame(clusterFrame{Origin: h.id, TargetSession: "s1", Message: data})

	// Local delivery happens at publish time; the subscription echo must not
	// produce a second copy.
	assertNoFrame(t, client)
}

func TestForeignClusterFrameIsDelivered(t *testing.T) {
	h := newTestHub()
	client := registerClient(t, h, "s1")
	other := registerClient(t, h, "s2")

	data, _ := json.Marshal(protocol.NewNotification("research.completed", nil))
	h.deliverClusterFrame(clusterFrame{Origin: "another-instance", TargetSession: "s1", Message: data})

	var env protocol.Envelope
	if err := json.Unmarshal(receiveFrame(t, client), &env); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if env.Method != "research.completed" {
		t.Errorf("method = %q, want research.completed", env.Method)
	}
	assertNoFrame(t, other)

	h.deliverClusterFrame(clusterFrame{Origin: "another-instance", TargetSession: "*", Message: data})
	receiveFrame(t, client)
	receiveFrame(t, other)
}
