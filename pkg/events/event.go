package events

import "time"

// Watermill topics carrying canvas sync notifications. The canvas
// bridge subscribes to these and pushes to connected clients.
const (
	TopicGraphChanged  = "canvas.graph_changed"
	TopicQuestionAsked = "canvas.question_asked"
)

// External event codes published to NATS.
const (
	TypePipelineCompleted = "PIPELINE_COMPLETED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "PIPELINE_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewPipelineCompleted builds the event emitted when a session's
// pipeline graph reaches the complete state.
func NewPipelineCompleted(userID, sessionID string, nodeCount int) BaseEvent {
	return BaseEvent{
		Type: TypePipelineCompleted,
		Data: map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
			"node_count": nodeCount,
		},
		OccurredAt: time.Now(),
	}
}
