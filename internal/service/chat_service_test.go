package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"pipeline-chat-be/internal/constant"
	"pipeline-chat-be/internal/dto"
	"pipeline-chat-be/internal/repository/memory"
	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/classifier"
	"pipeline-chat-be/pkg/events"
	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/store"
)

// scriptedClassifier runs a caller-provided function per call.
type scriptedClassifier struct {
	fn func(call int64, utterance string) (*intent.Intent, error)

	calls int64
}

func (c *scriptedClassifier) Classify(_ context.Context, _ []store.Turn, utterance string, _ []string) (*intent.Intent, error) {
	n := atomic.AddInt64(&c.calls, 1)
	return c.fn(n, utterance)
}

// recordingPublisher captures event bus traffic.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.topics))
	copy(out, p.topics)
	return out
}

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	r, err := catalog.New([]catalog.Connector{
		{Name: "HubSpot"},
		{Name: "Shopify", RequiredFields: []string{"shop_domain"}},
	})
	if err != nil {
		t.Fatalf("catalog setup: %v", err)
	}
	return r
}

func newTestChatService(t *testing.T, c classifier.Classifier) (IChatService, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	svc := NewChatService(testRegistry(t), c, memory.NewSessionRepository(), pub, nil, 5*time.Second)
	return svc, pub
}

func connectorIntent(name, role string) *intent.Intent {
	return &intent.Intent{
		Type:          intent.TypeConnectorSelection,
		ConnectorName: name,
		Role:          role,
		Confidence:    0.9,
	}
}

func TestCreateSessionGreets(t *testing.T) {
	svc, _ := newTestChatService(t, &scriptedClassifier{})
	res, err := svc.CreateSession(context.Background(), uuid.New())

	assert.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, store.StateAwaitingSource, res.State)
	assert.Equal(t, constant.ChatInitialGreeting, res.Greeting)
}

func TestSendChatBuildsPipeline(t *testing.T) {
	c := &scriptedClassifier{fn: func(call int64, _ string) (*intent.Intent, error) {
		if call == 1 {
			return connectorIntent("HubSpot", intent.RoleSource), nil
		}
		return connectorIntent("HubSpot", intent.RoleDestination), nil
	}}
	svc, pub := newTestChatService(t, c)

	userID := uuid.New()
	created, err := svc.CreateSession(context.Background(), userID)
	assert.NoError(t, err)

	res, err := svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
		SessionID: created.ID, Chat: "start from hubspot",
	})
	assert.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Len(t, res.Graph.Nodes, 1)

	res, err = svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
		SessionID: created.ID, Chat: "and back into hubspot",
	})
	assert.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, store.StateComplete, res.State)
	assert.Len(t, res.Graph.Nodes, 2)

	topics := pub.published()
	assert.Contains(t, topics, events.TopicGraphChanged)
	// Two graph mutations, two change notifications.
	count := 0
	for _, topic := range topics {
		if topic == events.TopicGraphChanged {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestSendChatQuestionPublishesToCanvas(t *testing.T) {
	c := &scriptedClassifier{fn: func(_ int64, _ string) (*intent.Intent, error) {
		return connectorIntent("Shopify", intent.RoleSource), nil
	}}
	svc, pub := newTestChatService(t, c)

	userID := uuid.New()
	created, _ := svc.CreateSession(context.Background(), userID)

	// Shopify has a required field, so this turn both changes the
	// graph and asks a question.
	res, err := svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
		SessionID: created.ID, Chat: "shopify as source",
	})
	assert.NoError(t, err)
	assert.Equal(t, store.StateAwaitingField, res.State)

	topics := pub.published()
	assert.Contains(t, topics, events.TopicGraphChanged)
	assert.Contains(t, topics, events.TopicQuestionAsked)
}

func TestSendChatDegradesToFallback(t *testing.T) {
	c := &scriptedClassifier{fn: func(_ int64, _ string) (*intent.Intent, error) {
		return nil, &classifier.Error{Kind: classifier.KindNetwork}
	}}
	svc, _ := newTestChatService(t, c)

	userID := uuid.New()
	created, _ := svc.CreateSession(context.Background(), userID)

	res, err := svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
		SessionID: created.ID, Chat: "use HubSpot as the source",
	})
	assert.NoError(t, err, "transport failures must never fail the conversation")
	assert.True(t, strings.HasPrefix(res.Reply, constant.ChatDegradedNotice))
	assert.Len(t, res.Graph.Nodes, 1, "fallback should still place the connector")
}

func TestSendChatStaleResponseDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})

	c := &scriptedClassifier{fn: func(call int64, _ string) (*intent.Intent, error) {
		if call == 1 {
			close(firstStarted)
			<-releaseFirst
			return connectorIntent("HubSpot", intent.RoleSource), nil
		}
		return connectorIntent("Shopify", intent.RoleSource), nil
	}}
	svc, _ := newTestChatService(t, c)

	userID := uuid.New()
	created, _ := svc.CreateSession(context.Background(), userID)

	type result struct {
		res *dto.SendChatResponse
		err error
	}
	firstDone := make(chan result, 1)
	go func() {
		res, err := svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
			SessionID: created.ID, Chat: "slow message",
		})
		firstDone <- result{res, err}
	}()

	<-firstStarted

	// Second message arrives while the first is still classifying.
	second, err := svc.SendChat(context.Background(), userID, &dto.SendChatRequest{
		SessionID: created.ID, Chat: "newer message",
	})
	assert.NoError(t, err)
	assert.False(t, second.Superseded)
	assert.Len(t, second.Graph.Nodes, 1)
	assert.Equal(t, "Shopify", second.Graph.Nodes[0].Connector.Name)

	close(releaseFirst)
	first := <-firstDone

	assert.NoError(t, first.err)
	assert.True(t, first.res.Superseded, "older classification must be discarded")
	// The stale result must not have touched the graph.
	assert.Len(t, first.res.Graph.Nodes, 1)
	assert.Equal(t, "Shopify", first.res.Graph.Nodes[0].Connector.Name)

	session, found := getSession(t, svc, userID, created.ID)
	assert.True(t, found)
	assert.Len(t, session.Graph.Nodes, 1)
}

func getSession(t *testing.T, svc IChatService, userID uuid.UUID, sessionID string) (*dto.GetSessionResponse, bool) {
	t.Helper()
	id, err := uuid.Parse(sessionID)
	if err != nil {
		t.Fatalf("session id is not a uuid: %v", err)
	}
	res, err := svc.GetSession(context.Background(), userID, id)
	if err != nil {
		return nil, false
	}
	return res, true
}

func TestSessionOwnershipEnforced(t *testing.T) {
	c := &scriptedClassifier{fn: func(_ int64, _ string) (*intent.Intent, error) {
		return intent.Unrecognized("x"), nil
	}}
	svc, _ := newTestChatService(t, c)

	owner := uuid.New()
	created, _ := svc.CreateSession(context.Background(), owner)

	_, err := svc.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{
		SessionID: created.ID, Chat: "hello",
	})
	assert.Error(t, err, "another user must not reach the session")

	err = svc.DeleteSession(context.Background(), uuid.New(), uuid.MustParse(created.ID))
	assert.Error(t, err)

	err = svc.DeleteSession(context.Background(), owner, uuid.MustParse(created.ID))
	assert.NoError(t, err)
}
