package websocket

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(module, message string, details map[string]interface{}) {}
func (noopLogger) Info(module, message string, details map[string]interface{})  {}
func (noopLogger) Warn(module, message string, details map[string]interface{})  {}
func (noopLogger) Error(module, message string, details map[string]interface{}) {}
func (noopLogger) Sync() error                                                  { return nil }

func (h *Hub) clientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// A device that never drains its Send buffer is dropped, its channel is
// closed exactly once, and the hub keeps serving the user's other
// devices.
func TestSendDropsSlowClientAndKeepsRunning(t *testing.T) {
	h := NewHub(nil, noopLogger{})
	go h.Run()

	userID := uuid.New()
	slow := &Client{Hub: h, UserID: userID, Send: make(chan []byte)}
	healthy := &Client{Hub: h, UserID: userID, Send: make(chan []byte, 8)}
	h.register <- slow
	h.register <- healthy

	require.Eventually(t, func() bool {
		return h.clientCount(userID) == 2
	}, time.Second, 5*time.Millisecond)

	h.Send(userID, "graph_changed", map[string]string{"session_id": "s1"})

	select {
	case <-healthy.Send:
	case <-time.After(time.Second):
		t.Fatal("healthy client never received the message")
	}

	require.Eventually(t, func() bool {
		return h.clientCount(userID) == 1
	}, time.Second, 5*time.Millisecond)

	select {
	case _, ok := <-slow.Send:
		require.False(t, ok, "slow client's channel should be closed after unregistration")
	case <-time.After(time.Second):
		t.Fatal("slow client's channel was never closed")
	}

	// The hub loop must survive the drop and keep delivering.
	h.Send(userID, "question_asked", map[string]string{"text": "What should \"dataset\" be?"})
	select {
	case <-healthy.Send:
	case <-time.After(time.Second):
		t.Fatal("hub stopped delivering after dropping a client")
	}
}

// Unregistering the same client twice closes its channel only once.
func TestDuplicateUnregisterIsTolerated(t *testing.T) {
	h := NewHub(nil, noopLogger{})
	go h.Run()

	userID := uuid.New()
	client := &Client{Hub: h, UserID: userID, Send: make(chan []byte, 1)}
	h.register <- client

	require.Eventually(t, func() bool {
		return h.clientCount(userID) == 1
	}, time.Second, 5*time.Millisecond)

	h.unregister <- client
	h.unregister <- client

	require.Eventually(t, func() bool {
		return h.clientCount(userID) == 0
	}, time.Second, 5*time.Millisecond)

	// A send to the departed user is a no-op, not a crash.
	h.Send(userID, "graph_changed", map[string]string{"session_id": "s1"})
}
