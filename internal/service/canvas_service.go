package service

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"pipeline-chat-be/internal/dto"
	"pipeline-chat-be/internal/pkg/logger"
	"pipeline-chat-be/internal/websocket"
	"pipeline-chat-be/pkg/events"
)

// ICanvasService bridges the internal event bus to connected canvas
// clients: graph snapshots and clarifying questions are pushed, never
// polled.
type ICanvasService interface {
	Start(ctx context.Context) error
}

type canvasService struct {
	pubSub *gochannel.GoChannel
	hub    *websocket.Hub
	logger logger.ILogger
}

func NewCanvasService(pubSub *gochannel.GoChannel, hub *websocket.Hub, log logger.ILogger) ICanvasService {
	return &canvasService{
		pubSub: pubSub,
		hub:    hub,
		logger: log,
	}
}

func (cs *canvasService) Start(ctx context.Context) error {
	graphMsgs, err := cs.pubSub.Subscribe(ctx, events.TopicGraphChanged)
	if err != nil {
		return err
	}
	questionMsgs, err := cs.pubSub.Subscribe(ctx, events.TopicQuestionAsked)
	if err != nil {
		return err
	}

	go func() {
		for msg := range graphMsgs {
			cs.forwardGraphChanged(msg)
		}
	}()
	go func() {
		for msg := range questionMsgs {
			cs.forwardQuestionAsked(msg)
		}
	}()

	return nil
}

func (cs *canvasService) forwardGraphChanged(msg *message.Message) {
	var payload dto.CanvasGraphChangedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CanvasService", "Failed to unmarshal graph change", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		cs.logger.Warn("CanvasService", "Graph change with invalid user id", map[string]interface{}{"user_id": payload.UserID})
		msg.Ack()
		return
	}

	cs.hub.Send(userID, "graph_changed", payload)
	msg.Ack()
}

func (cs *canvasService) forwardQuestionAsked(msg *message.Message) {
	var payload dto.CanvasQuestionAskedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CanvasService", "Failed to unmarshal question", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		msg.Ack()
		return
	}

	cs.hub.Send(userID, "question_asked", payload)
	msg.Ack()
}
