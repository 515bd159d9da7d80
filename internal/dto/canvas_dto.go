package dto

import (
	"encoding/json"

	"pipeline-chat-be/pkg/graph"
)

// CanvasGraphChangedMessage travels over the internal event bus from
// the chat service to the canvas bridge.
type CanvasGraphChangedMessage struct {
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Snapshot  graph.Snapshot `json:"snapshot"`
}

// CanvasQuestionAskedMessage carries a clarifying question to the canvas.
type CanvasQuestionAskedMessage struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (m CanvasGraphChangedMessage) Marshal() []byte {
	data, _ := json.Marshal(m)
	return data
}

func (m CanvasQuestionAskedMessage) Marshal() []byte {
	data, _ := json.Marshal(m)
	return data
}
