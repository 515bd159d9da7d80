package dto

import (
	"time"

	"pipeline-chat-be/pkg/graph"
)

type CreateSessionResponse struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Greeting string `json:"greeting"`
}

type SendChatRequest struct {
	SessionID string `json:"session_id"`
	Chat      string `json:"chat"`
}

type SendChatResponse struct {
	Reply     string         `json:"reply"`
	State     string         `json:"state"`
	Completed bool           `json:"completed"`
	Graph     graph.Snapshot `json:"graph"`

	// Superseded marks a message whose classification finished after
	// a newer message had already been submitted; its result was
	// discarded and the graph untouched.
	Superseded bool `json:"superseded,omitempty"`
}

type TurnResponse struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type GetSessionResponse struct {
	ID    string         `json:"id"`
	State string         `json:"state"`
	Turns []TurnResponse `json:"turns"`
	Graph graph.Snapshot `json:"graph"`
}
