package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"pipeline-chat-be/internal/constant"
	"pipeline-chat-be/internal/dto"
	"pipeline-chat-be/internal/repository/memory"
	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/classifier"
	"pipeline-chat-be/pkg/dialogue"
	"pipeline-chat-be/pkg/events"
	pktNats "pipeline-chat-be/pkg/nats"
	"pipeline-chat-be/pkg/store"
)

// IChatService defines the conversational pipeline-builder interface
type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.GetSessionResponse, error)
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
}

// chatService coordinates classification, dialogue state and canvas
// notifications. Messages for one session are applied strictly in
// submission order; a classification that finishes after a newer
// message has been claimed is discarded (stale-response guard).
type chatService struct {
	registry    *catalog.Registry
	classifier  classifier.Classifier
	fallback    classifier.Classifier
	machine     *dialogue.Machine
	sessionRepo *memory.SessionRepository
	publisher   IPublisherService
	natsPub     *pktNats.Publisher
	llmLogger   *log.Logger
	timeout     time.Duration

	// inflight holds the pending classification per session, so a
	// newer message can supersede it.
	inflight sync.Map // session id -> *inflightCall
}

type inflightCall struct {
	cancel context.CancelFunc
}

// NewChatService creates a new chat service with all domain components
func NewChatService(
	registry *catalog.Registry,
	remote classifier.Classifier,
	sessionRepo *memory.SessionRepository,
	publisher IPublisherService,
	natsPub *pktNats.Publisher,
	classifyTimeout time.Duration,
) IChatService {

	llmLogger := initLLMLogger()

	return &chatService{
		registry:    registry,
		classifier:  remote,
		fallback:    classifier.NewFallback(),
		machine:     dialogue.NewMachine(registry, llmLogger),
		sessionRepo: sessionRepo,
		publisher:   publisher,
		natsPub:     natsPub,
		llmLogger:   llmLogger,
		timeout:     classifyTimeout,
	}
}

func initLLMLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "llm_intent.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[LLM-INTENT] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}

// CreateSession starts a new conversation with an empty pipeline draft.
func (cs *chatService) CreateSession(_ context.Context, userId uuid.UUID) (*dto.CreateSessionResponse, error) {
	session := store.NewSession(uuid.New().String(), userId.String())
	session.Append(store.SpeakerSystem, constant.ChatInitialGreeting)
	cs.sessionRepo.Save(session)

	return &dto.CreateSessionResponse{
		ID:       session.ID,
		State:    session.State,
		Greeting: constant.ChatInitialGreeting,
	}, nil
}

func (cs *chatService) GetSession(_ context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.GetSessionResponse, error) {
	session, err := cs.loadOwned(userId, sessionId.String())
	if err != nil {
		return nil, err
	}

	session.Lock()
	defer session.Unlock()

	turns := make([]dto.TurnResponse, len(session.Turns))
	for i, t := range session.Turns {
		turns[i] = dto.TurnResponse{Speaker: t.Speaker, Text: t.Text, CreatedAt: t.CreatedAt}
	}

	return &dto.GetSessionResponse{
		ID:    session.ID,
		State: session.State,
		Turns: turns,
		Graph: session.Graph.Snapshot(),
	}, nil
}

// SendChat processes one user message end to end: append the turn,
// classify it, run the dialogue machine, and notify the canvas.
func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	session, err := cs.loadOwned(userId, request.SessionID)
	if err != nil {
		return nil, err
	}

	session.Lock()
	session.Append(store.SpeakerUser, request.Chat)
	seq := session.NextSeq()
	turns := session.RecentTurns(12)
	session.Unlock()

	// A newer message supersedes any classification still in flight.
	cctx, cancel := context.WithTimeout(ctx, cs.timeout)
	defer cancel()
	flight := &inflightCall{cancel: cancel}
	if prev, loaded := cs.inflight.Swap(session.ID, flight); loaded {
		prev.(*inflightCall).cancel()
	}
	defer cs.inflight.CompareAndDelete(session.ID, flight)

	names := cs.registry.Names()

	degraded := false
	it, err := cs.classifier.Classify(cctx, turns, request.Chat, names)
	if err != nil {
		// Transport failure: degrade to the deterministic rule-based
		// matcher. The conversation never crashes on classification.
		cs.llmLogger.Printf("[WARN] Remote classification failed, engaging fallback: %v", err)
		degraded = true
		it, _ = cs.fallback.Classify(cctx, turns, request.Chat, names)
	}

	session.Lock()
	defer session.Unlock()

	// Stale-response guard: if another message claimed a newer
	// sequence while we were classifying, this result must not touch
	// the graph.
	if seq != session.CurrentSeq() {
		cs.llmLogger.Printf("[INFO] Dropping superseded classification for session %s (seq %d < %d)",
			session.ID, seq, session.CurrentSeq())
		return &dto.SendChatResponse{
			State:      session.State,
			Graph:      session.Graph.Snapshot(),
			Superseded: true,
		}, nil
	}

	decision, err := cs.machine.Apply(session, it)
	if err != nil {
		// Graph invariant violation: a logic fault, surfaced loudly.
		return nil, err
	}

	reply := decision.Reply
	if degraded {
		reply = constant.ChatDegradedNotice + " " + reply
	}

	cs.sessionRepo.Save(session)
	cs.notifyCanvas(ctx, session, decision)

	return &dto.SendChatResponse{
		Reply:     reply,
		State:     session.State,
		Completed: decision.Completed,
		Graph:     session.Graph.Snapshot(),
	}, nil
}

func (cs *chatService) DeleteSession(_ context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	if _, err := cs.loadOwned(userId, sessionId.String()); err != nil {
		return err
	}
	cs.sessionRepo.Delete(sessionId.String())
	return nil
}

func (cs *chatService) loadOwned(userId uuid.UUID, sessionID string) (*store.Session, error) {
	session, found := cs.sessionRepo.Get(sessionID)
	if !found || session.UserID != userId.String() {
		return nil, fmt.Errorf("session not found or access denied")
	}
	return session, nil
}

// notifyCanvas publishes the push notifications the canvas subscribes
// to. Called under the session lock, right after the mutation commits.
func (cs *chatService) notifyCanvas(ctx context.Context, session *store.Session, decision *dialogue.Decision) {
	if decision.GraphChanged {
		msg := dto.CanvasGraphChangedMessage{
			UserID:    session.UserID,
			SessionID: session.ID,
			Snapshot:  session.Graph.Snapshot(),
		}
		if err := cs.publisher.Publish(ctx, events.TopicGraphChanged, msg.Marshal()); err != nil {
			cs.llmLogger.Printf("[ERROR] Failed to publish graph change: %v", err)
		}
	}

	if decision.IsQuestion {
		msg := dto.CanvasQuestionAskedMessage{
			UserID:    session.UserID,
			SessionID: session.ID,
			Text:      decision.Reply,
		}
		if err := cs.publisher.Publish(ctx, events.TopicQuestionAsked, msg.Marshal()); err != nil {
			cs.llmLogger.Printf("[ERROR] Failed to publish question: %v", err)
		}
	}

	if decision.Completed && cs.natsPub != nil {
		snap := session.Graph.Snapshot()
		evt := events.NewPipelineCompleted(session.UserID, session.ID, len(snap.Nodes))
		if err := cs.natsPub.Publish(ctx, evt); err != nil {
			cs.llmLogger.Printf("[WARN] Failed to publish pipeline completion to NATS: %v", err)
		}
	}
}
