package dialogue

import (
	"io"
	"log"
	"strings"
	"testing"

	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/store"
)

func testMachine(t *testing.T) *Machine {
	t.Helper()
	registry, err := catalog.New([]catalog.Connector{
		{Name: "Shopify", RequiredFields: []string{"shop_domain"}},
		{Name: "HubSpot"},
		{Name: "BigQuery", RequiredFields: []string{"project_id", "dataset"}},
		{Name: "Webhook", RequiredFields: []string{"url"}},
	})
	if err != nil {
		t.Fatalf("catalog setup: %v", err)
	}
	return NewMachine(registry, log.New(io.Discard, "", 0))
}

func apply(t *testing.T, m *Machine, s *store.Session, it *intent.Intent) *Decision {
	t.Helper()
	d, err := m.Apply(s, it)
	if err != nil {
		t.Fatalf("Apply(%s) error: %v", it.Type, err)
	}
	return d
}

func connector(name, role string) *intent.Intent {
	return &intent.Intent{
		Type:          intent.TypeConnectorSelection,
		ConnectorName: name,
		Role:          role,
		Confidence:    0.9,
	}
}

func fieldAnswer(key, value string) *intent.Intent {
	return &intent.Intent{Type: intent.TypeFieldAnswer, FieldKey: key, Value: value, Confidence: 0.9}
}

// Full conversation: source with a field, placeholder transform,
// destination with fields, completion.
func TestHappyPathConversation(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, connector("Shopify", intent.RoleSource))
	if !d.IsQuestion || !d.GraphChanged {
		t.Error("source with a required field should add the node and ask for the field")
	}
	if s.State != store.StateAwaitingField {
		t.Fatalf("state = %s, want %s", s.State, store.StateAwaitingField)
	}

	d = apply(t, m, s, fieldAnswer("shop_domain", "acme.myshopify.com"))
	if s.State != store.StateAwaitingTransform {
		t.Fatalf("state = %s, want %s after last field", s.State, store.StateAwaitingTransform)
	}

	d = apply(t, m, s, &intent.Intent{Type: intent.TypeTransformSelection, TransformName: "dedupe step", Confidence: 0.9})
	if !d.GraphChanged {
		t.Error("placeholder transform should change the graph")
	}
	if tr := s.Graph.Transforms(); len(tr) != 1 || !tr[0].Dummy {
		t.Error("unresolvable transform name should land as a dummy node")
	}

	d = apply(t, m, s, connector("BigQuery", intent.RoleDestination))
	if s.State != store.StateAwaitingField {
		t.Fatalf("state = %s, want field clarification for destination", s.State)
	}
	apply(t, m, s, fieldAnswer("project_id", "analytics-prod"))
	d = apply(t, m, s, fieldAnswer("dataset", "orders"))

	if !d.Completed {
		t.Error("final field answer should complete the pipeline")
	}
	if s.State != store.StateComplete {
		t.Fatalf("state = %s, want %s", s.State, store.StateComplete)
	}
	if snap := s.Graph.Snapshot(); len(snap.Nodes) != 3 {
		t.Errorf("pipeline has %d nodes, want 3", len(snap.Nodes))
	}
}

func TestFieldlessConnectorsSkipClarification(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, connector("HubSpot", intent.RoleSource))
	if d.IsQuestion {
		t.Error("connector without required fields should not trigger a field question")
	}
	if s.State != store.StateAwaitingTransform {
		t.Fatalf("state = %s, want %s", s.State, store.StateAwaitingTransform)
	}

	d = apply(t, m, s, connector("HubSpot", intent.RoleDestination))
	if !d.Completed {
		t.Error("fieldless destination should complete immediately")
	}
}

func TestLowConfidenceTreatedAsUnrecognized(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	it := connector("Shopify", intent.RoleSource)
	it.Confidence = ConfidenceThreshold - 0.01
	d := apply(t, m, s, it)

	if !d.IsQuestion || d.GraphChanged {
		t.Error("below-threshold intent must not mutate the graph")
	}
	if s.State != store.StateAwaitingSource {
		t.Errorf("state = %s, want unchanged", s.State)
	}
	if s.Graph.Source() != nil {
		t.Error("no node should have been added")
	}
}

func TestThresholdBoundaryApplies(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	it := connector("HubSpot", intent.RoleSource)
	it.Confidence = ConfidenceThreshold
	d := apply(t, m, s, it)
	if !d.GraphChanged {
		t.Error("confidence exactly at the threshold should apply")
	}
}

func TestUnknownConnectorAsksInsteadOfRejecting(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, connector("Airtable", intent.RoleSource))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("unknown connector should produce a question, not a mutation")
	}
	if s.LastMentioned != "Airtable" {
		t.Errorf("LastMentioned = %q, want the named connector", s.LastMentioned)
	}
}

func TestDestinationRefusedWhileAwaitingSource(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, connector("BigQuery", intent.RoleDestination))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("destination before source should be a question, never a graph write")
	}
	if s.Graph.Destination() != nil {
		t.Error("no destination node may exist without a source")
	}
}

func TestMismatchedFieldAnswerReasks(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("Shopify", intent.RoleSource))
	pendingBefore := *s.Pending

	d := apply(t, m, s, fieldAnswer("api_key", "nope"))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("mismatched field answer should only re-ask")
	}
	if *s.Pending != pendingBefore {
		t.Error("pending slot must survive a mismatched answer")
	}

	apply(t, m, s, fieldAnswer("shop_domain", "acme.myshopify.com"))
	if s.State != store.StateAwaitingTransform {
		t.Error("matching answer should resume the interrupted flow")
	}
}

func TestConnectorDuringFieldClarificationReasks(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("Shopify", intent.RoleSource))
	d := apply(t, m, s, connector("BigQuery", intent.RoleDestination))

	if !d.IsQuestion || d.GraphChanged {
		t.Error("connector selection mid-clarification should re-ask for the field")
	}
	if s.State != store.StateAwaitingField {
		t.Errorf("state = %s, want to stay in field clarification", s.State)
	}
}

func TestCompleteStateAllowsFieldEdits(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("HubSpot", intent.RoleSource))
	apply(t, m, s, connector("Webhook", intent.RoleDestination))
	apply(t, m, s, fieldAnswer("url", "https://old.example.com"))
	if s.State != store.StateComplete {
		t.Fatalf("setup failed, state = %s", s.State)
	}

	d := apply(t, m, s, fieldAnswer("url", "https://new.example.com"))
	if !d.GraphChanged || d.IsQuestion {
		t.Error("field edit on a complete pipeline should apply in place")
	}
	if got := s.Graph.Destination().Fields["url"]; got != "https://new.example.com" {
		t.Errorf("url = %q, want updated value", got)
	}
	if s.State != store.StateComplete {
		t.Errorf("state = %s, completion must be re-enterable", s.State)
	}

	d = apply(t, m, s, fieldAnswer("nonexistent", "x"))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("unknown field on a complete pipeline should only ask")
	}
}

func TestRoleInferredFromState(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	// Bare connector while awaiting the source: it becomes the source.
	d := apply(t, m, s, connector("HubSpot", ""))
	if !d.GraphChanged || s.Graph.Source() == nil {
		t.Fatal("roleless connector should be inferred as the source")
	}

	// And after the source exists, a bare connector is the destination.
	d = apply(t, m, s, connector("Webhook", ""))
	if s.State != store.StateAwaitingField {
		t.Fatalf("state = %s, want destination field clarification", s.State)
	}
	if s.Graph.Destination() == nil {
		t.Error("roleless connector should be inferred as the destination")
	}
}

func TestEverySystemReplyIsLogged(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	steps := []*intent.Intent{
		connector("Shopify", intent.RoleSource),
		fieldAnswer("shop_domain", "acme"),
		intent.Unrecognized("???"),
		connector("HubSpot", intent.RoleDestination),
	}
	for i, it := range steps {
		before := len(s.Turns)
		apply(t, m, s, it)
		if len(s.Turns) != before+1 {
			t.Fatalf("step %d: %d turns appended, want exactly 1", i, len(s.Turns)-before)
		}
		if last := s.Turns[len(s.Turns)-1]; last.Speaker != store.SpeakerSystem {
			t.Fatalf("step %d: last turn speaker = %s, want system", i, last.Speaker)
		}
	}
}

// Two connector selections in a row compile straight to a two-node
// pipeline with a single edge.
func TestConnectToPipelineShape(t *testing.T) {
	registry, err := catalog.New([]catalog.Connector{
		{Name: "Shopify"},
		{Name: "BigQuery"},
	})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMachine(registry, log.New(io.Discard, "", 0))
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("Shopify", intent.RoleSource))
	d := apply(t, m, s, connector("BigQuery", intent.RoleDestination))
	if !d.Completed {
		t.Fatal("expected a completed pipeline")
	}

	snap := s.Graph.Snapshot()
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 {
		t.Fatalf("got %d nodes / %d edges, want 2 / 1", len(snap.Nodes), len(snap.Edges))
	}
	if s.Graph.Source().Connector.Name != "Shopify" {
		t.Error("source should be Shopify")
	}
	if s.Graph.Destination().Connector.Name != "BigQuery" {
		t.Error("destination should be BigQuery")
	}
}

// A bare role answer resolved against the last-mentioned connector
// places that connector.
func TestRoleClarificationBindsConnector(t *testing.T) {
	registry, err := catalog.New([]catalog.Connector{{Name: "Snowflake"}})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMachine(registry, log.New(io.Discard, "", 0))
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, &intent.Intent{
		Type:          intent.TypeRoleClarification,
		ConnectorName: "Snowflake",
		Role:          intent.RoleSource,
		Confidence:    0.95,
	})
	if !d.GraphChanged {
		t.Fatal("role clarification should place the connector")
	}
	if src := s.Graph.Source(); src == nil || src.Connector.Name != "Snowflake" {
		t.Error("source should be Snowflake")
	}
}

func TestUnrecognizedMidFlowLeavesStateAlone(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("HubSpot", intent.RoleSource))
	if s.State != store.StateAwaitingTransform {
		t.Fatalf("setup failed, state = %s", s.State)
	}
	nodesBefore := len(s.Graph.Snapshot().Nodes)

	d := apply(t, m, s, intent.Unrecognized("%%%garbage%%%"))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("unresolvable input should only ask a question")
	}
	if s.State != store.StateAwaitingTransform {
		t.Errorf("state = %s, want unchanged", s.State)
	}
	if len(s.Graph.Snapshot().Nodes) != nodesBefore {
		t.Error("no node may be added for unrecognized input")
	}
}

// The clarifying question keeps referencing the last-mentioned
// connector after the source is placed, not only before it.
func TestUnrecognizedMidFlowReferencesLastMentioned(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("HubSpot", intent.RoleSource))
	apply(t, m, s, connector("Mixpanel", intent.RoleDestination)) // not in the catalog
	if s.State != store.StateAwaitingTransform || s.LastMentioned != "Mixpanel" {
		t.Fatalf("setup failed: state = %s, last mentioned = %q", s.State, s.LastMentioned)
	}

	d := apply(t, m, s, intent.Unrecognized("err, that one"))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("unrecognized input should only ask a question")
	}
	if !strings.Contains(d.Reply, "Mixpanel") {
		t.Errorf("reply %q should reference the last-mentioned connector", d.Reply)
	}
}

// A transform request on a finished pipeline gets a completion-aware
// answer, not a prompt for a source that already exists.
func TestTransformRefusedOnCompletePipeline(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	apply(t, m, s, connector("HubSpot", intent.RoleSource))
	apply(t, m, s, connector("HubSpot", intent.RoleDestination))
	if s.State != store.StateComplete {
		t.Fatalf("setup failed, state = %s", s.State)
	}
	nodesBefore := len(s.Graph.Snapshot().Nodes)

	d := apply(t, m, s, &intent.Intent{Type: intent.TypeTransformSelection, TransformName: "dedupe", Confidence: 0.9})
	if !d.IsQuestion || d.GraphChanged {
		t.Error("transform on a complete pipeline should only ask")
	}
	if !strings.Contains(d.Reply, "complete") {
		t.Errorf("reply %q should acknowledge the pipeline is complete", d.Reply)
	}
	if strings.Contains(d.Reply, "source") {
		t.Errorf("reply %q must not ask for a source that already exists", d.Reply)
	}
	if len(s.Graph.Snapshot().Nodes) != nodesBefore {
		t.Error("no node may be added after completion")
	}
}

func TestUnrecognizedClarifiesByState(t *testing.T) {
	m := testMachine(t)
	s := store.NewSession("s1", "u1")

	d := apply(t, m, s, intent.Unrecognized("gibberish"))
	if !d.IsQuestion || d.GraphChanged {
		t.Error("unrecognized input should only produce a question")
	}

	// After a connector was mentioned, the clarification should offer it.
	apply(t, m, s, connector("Airtable", intent.RoleSource))
	d = apply(t, m, s, intent.Unrecognized("hmm"))
	if !d.IsQuestion {
		t.Error("expected clarifying question")
	}
}
