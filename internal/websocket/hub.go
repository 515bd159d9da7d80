package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pipeline-chat-be/internal/pkg/logger"
)

type Hub struct {
	// Registered clients map: UserID -> List of Clients (multi-device)
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Canvas client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			// Sole owner of close(client.Send). A duplicate unregister
			// request finds the client already removed and falls through.
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Canvas client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send pushes a canvas notification to every device of one user. The
// envelope type tells the canvas which handler to run
// (e.g. "graph_changed", "question_asked").
func (h *Hub) Send(userID uuid.UUID, msgType string, payload interface{}) {
	data, _ := json.Marshal(map[string]interface{}{
		"type": msgType,
		"data": payload,
	})

	// Channel sends stay under the read lock: the unregister handler is
	// the sole owner of close(client.Send) and closes under the write
	// lock, so a channel can never be closed mid-send. Slow clients are
	// handed to unregister after the lock is released.
	h.mu.RLock()
	var slow []*Client
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"user_id": userID})
		h.unregister <- client
	}

	// Publish to Redis so other instances can reach the user's
	// remaining devices.
	if h.rdb != nil {
		jsonPayload, _ := json.Marshal(map[string]interface{}{
			"target_user_id": userID.String(),
			"message":        data,
		})
		h.rdb.Publish(context.Background(), "canvas_events", jsonPayload)
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to "canvas_events"; when a message
	// arrives we check whether the target user is connected locally
	// and forward if so.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "canvas_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		uid, err := uuid.Parse(payload.TargetUserID)
		if err != nil {
			continue
		}

		h.mu.RLock()
		var slow []*Client
		for _, client := range h.clients[uid] {
			select {
			case client.Send <- payload.Message:
			default:
				slow = append(slow, client)
			}
		}
		h.mu.RUnlock()

		for _, client := range slow {
			h.unregister <- client
		}
	}
}
