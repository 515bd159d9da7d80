package store

import (
	"sync"
	"time"

	"pipeline-chat-be/pkg/graph"
)

// Conversation speakers.
const (
	SpeakerUser   = "user"
	SpeakerSystem = "system"
)

// Dialogue states. The state names what the machine is still waiting
// for; StateComplete is re-enterable for field edits.
const (
	StateAwaitingSource      = "AWAITING_SOURCE"
	StateAwaitingTransform   = "AWAITING_TRANSFORM"
	StateAwaitingDestination = "AWAITING_DESTINATION"
	StateAwaitingField       = "AWAITING_FIELD"
	StateComplete            = "COMPLETE"
)

// Turn is one utterance in the conversation log. Append-only; never
// mutated after creation.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingSlot is the single outstanding clarification the dialogue
// machine is waiting on.
type PendingSlot struct {
	NodeID   string `json:"node_id"`
	FieldKey string `json:"field_key"`
	// Resume is the state to return to once the slot is filled.
	Resume string `json:"resume"`
}

// Session is the in-memory conversation plus the pipeline draft it is
// compiling. It lives for the browser session only; nothing here is
// persisted. The session exclusively owns its turn log and graph.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	State  string `json:"state"`

	Turns []Turn       `json:"turns"`
	Graph *graph.Graph `json:"-"`

	Pending *PendingSlot `json:"pending,omitempty"`

	// LastMentioned is the connector name most recently seen in the
	// conversation, used to resolve short answers like "source".
	LastMentioned string `json:"last_mentioned,omitempty"`

	// seq is the turn sequence number backing the stale-response
	// guard: a classification result tagged with an old sequence is
	// discarded instead of applied.
	seq int64

	mu sync.Mutex
}

func NewSession(id, userID string) *Session {
	return &Session{
		ID:     id,
		UserID: userID,
		State:  StateAwaitingSource,
		Graph:  graph.New(),
	}
}

// Lock serializes graph and state mutation for this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session lock.
func (s *Session) Unlock() { s.mu.Unlock() }

// NextSeq claims the sequence number for a newly submitted message.
// Must be called under the session lock.
func (s *Session) NextSeq() int64 {
	s.seq++
	return s.seq
}

// CurrentSeq reports the latest claimed sequence number.
func (s *Session) CurrentSeq() int64 { return s.seq }

// Append adds a turn to the conversation log.
func (s *Session) Append(speaker, text string) {
	s.Turns = append(s.Turns, Turn{
		Speaker:   speaker,
		Text:      text,
		CreatedAt: time.Now(),
	})
}

// RecentTurns returns up to limit of the newest turns, oldest first.
// Classification prompts embed a bounded window, not the full log.
func (s *Session) RecentTurns(limit int) []Turn {
	if len(s.Turns) <= limit {
		out := make([]Turn, len(s.Turns))
		copy(out, s.Turns)
		return out
	}
	out := make([]Turn, limit)
	copy(out, s.Turns[len(s.Turns)-limit:])
	return out
}
