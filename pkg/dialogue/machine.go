package dialogue

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/graph"
	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/store"
)

// ConfidenceThreshold gates automatic intent application. Intents
// scored below it are treated as unrecognized. Tunable policy, not a
// calibrated constant; the classifier only reports the score.
const ConfidenceThreshold = 0.5

// Decision is the outcome of applying one intent: the system's reply
// plus what happened to the graph.
type Decision struct {
	Reply        string
	IsQuestion   bool // clarifying question vs. acknowledgement
	GraphChanged bool
	Completed    bool // the pipeline reached COMPLETE this turn
}

// Machine owns the "what's missing" logic. Given the session and the
// latest intent it either mutates the pipeline graph, asks a
// clarifying question, or rejects the intent with a question — and
// appends exactly one system turn per call. The caller holds the
// session lock.
type Machine struct {
	registry *catalog.Registry
	logger   *log.Logger
}

func NewMachine(registry *catalog.Registry, logger *log.Logger) *Machine {
	return &Machine{registry: registry, logger: logger}
}

// Apply runs one transition of the dialogue state machine.
// A returned error is always a graph invariant violation: a logic
// fault the machine must never produce in normal operation. It is
// propagated, never swallowed.
func (m *Machine) Apply(s *store.Session, it *intent.Intent) (*Decision, error) {
	// Threshold policy lives here, in one place.
	if (it.Type == intent.TypeRoleClarification || it.Type == intent.TypeConnectorSelection) &&
		it.Confidence < ConfidenceThreshold {
		m.logger.Printf("[DIALOGUE] Confidence %.2f below threshold, treating as unrecognized", it.Confidence)
		it = intent.Unrecognized(it.RawText)
	}

	var (
		d   *Decision
		err error
	)
	switch it.Type {
	case intent.TypeConnectorSelection, intent.TypeRoleClarification:
		d, err = m.applyConnector(s, it)
	case intent.TypeTransformSelection:
		d, err = m.applyTransform(s, it)
	case intent.TypeFieldAnswer:
		d, err = m.applyFieldAnswer(s, it)
	default:
		d = m.clarify(s)
	}
	if err != nil {
		m.logger.Printf("[FATAL] Dialogue produced an invalid graph mutation in state %s: %v", s.State, err)
		return nil, err
	}

	s.Append(store.SpeakerSystem, d.Reply)
	m.logger.Printf("[DIALOGUE] State: %s, Reply: %q", s.State, d.Reply)
	return d, nil
}

func (m *Machine) applyConnector(s *store.Session, it *intent.Intent) (*Decision, error) {
	s.LastMentioned = it.ConnectorName

	conn, found := m.registry.Lookup(it.ConnectorName)
	if !found {
		// Unknown names are a valid state, not a rejection: the
		// connector may live outside the catalog.
		return &Decision{
			Reply: fmt.Sprintf("I don't know a connector called %q yet. Could you pick one from the catalog, or describe what it connects to?",
				it.ConnectorName),
			IsQuestion: true,
		}, nil
	}

	role := it.Role
	if role == "" {
		role = m.inferRole(s)
	}

	switch s.State {
	case store.StateAwaitingSource:
		if role != intent.RoleSource {
			return &Decision{
				Reply:      fmt.Sprintf("Let's pick the source first. Should %s be the pipeline's source?", conn.Name),
				IsQuestion: true,
			}, nil
		}
		id, err := s.Graph.AddNode(graph.RoleSource, &conn, false)
		if err != nil {
			return nil, err
		}
		if d := m.enterFieldClarification(s, id, store.StateAwaitingTransform,
			fmt.Sprintf("Source set to %s.", conn.Name)); d != nil {
			return d, nil
		}
		s.State = store.StateAwaitingTransform
		return &Decision{
			Reply:        fmt.Sprintf("Source set to %s. Add a transform step, or tell me the destination.", conn.Name),
			GraphChanged: true,
		}, nil

	case store.StateAwaitingTransform, store.StateAwaitingDestination:
		switch role {
		case intent.RoleTransform:
			return m.addTransform(s, &conn, false, conn.Name)
		case intent.RoleDestination:
			id, err := s.Graph.AddNode(graph.RoleDestination, &conn, false)
			if err != nil {
				return nil, err
			}
			if d := m.enterFieldClarification(s, id, store.StateComplete,
				fmt.Sprintf("Destination set to %s.", conn.Name)); d != nil {
				return d, nil
			}
			s.State = store.StateComplete
			return &Decision{
				Reply:        fmt.Sprintf("Destination set to %s. Your pipeline is complete.", conn.Name),
				GraphChanged: true,
				Completed:    true,
			}, nil
		default:
			return &Decision{
				Reply:      fmt.Sprintf("There is already a source. Should %s be a transform step or the destination?", conn.Name),
				IsQuestion: true,
			}, nil
		}

	case store.StateAwaitingField:
		return m.reaskPending(s), nil

	default: // StateComplete
		return &Decision{
			Reply:      "The pipeline is already complete. You can still update a node's configuration by answering with a field value.",
			IsQuestion: true,
		}, nil
	}
}

func (m *Machine) applyTransform(s *store.Session, it *intent.Intent) (*Decision, error) {
	switch s.State {
	case store.StateAwaitingTransform, store.StateAwaitingDestination:
		if conn, found := m.registry.Lookup(it.TransformName); found {
			s.LastMentioned = conn.Name
			return m.addTransform(s, &conn, false, conn.Name)
		}
		// Unresolvable name with an explicit transform request: place
		// a dummy transform, a structural placeholder with no fields.
		return m.addTransform(s, nil, true, "unspecified transform")
	case store.StateAwaitingField:
		return m.reaskPending(s), nil
	case store.StateComplete:
		return &Decision{
			Reply:      "The pipeline is already complete, so I can't add more transforms. You can update a node's configuration, or start a new session.",
			IsQuestion: true,
		}, nil
	default:
		return &Decision{
			Reply:      "I need a source connector before adding transforms. Which connector should the pipeline read from?",
			IsQuestion: true,
		}, nil
	}
}

func (m *Machine) addTransform(s *store.Session, conn *catalog.Connector, dummy bool, label string) (*Decision, error) {
	id, err := s.Graph.AddNode(graph.RoleTransform, conn, dummy)
	if err != nil {
		return nil, err
	}
	// Dummy transforms are exempt from field clarification by design.
	if !dummy {
		if d := m.enterFieldClarification(s, id, store.StateAwaitingTransform,
			fmt.Sprintf("Added %s transform.", label)); d != nil {
			return d, nil
		}
	}
	s.State = store.StateAwaitingTransform
	return &Decision{
		Reply:        fmt.Sprintf("Added %s to the pipeline. Add another transform, or tell me the destination.", label),
		GraphChanged: true,
	}, nil
}

func (m *Machine) applyFieldAnswer(s *store.Session, it *intent.Intent) (*Decision, error) {
	switch s.State {
	case store.StateAwaitingField:
		if s.Pending == nil {
			// Defensive resync; Pending must exist in this state.
			s.State = store.StateAwaitingTransform
			return m.clarify(s), nil
		}
		if it.FieldKey != s.Pending.FieldKey {
			// Mismatched field: ignore it, re-ask for the pending one.
			return m.reaskPending(s), nil
		}
		nodeID, err := uuid.Parse(s.Pending.NodeID)
		if err != nil {
			return nil, &graph.InvariantViolation{Invariant: graph.InvariantStableIDs, Detail: "pending slot holds malformed node id"}
		}
		if err := s.Graph.SetField(nodeID, it.FieldKey, it.Value); err != nil {
			return nil, err
		}

		if missing := s.Graph.MissingFields(nodeID); len(missing) > 0 {
			s.Pending.FieldKey = missing[0]
			return &Decision{
				Reply:        fmt.Sprintf("Got it. What should %q be?", missing[0]),
				IsQuestion:   true,
				GraphChanged: true,
			}, nil
		}

		resume := s.Pending.Resume
		s.Pending = nil
		s.State = resume
		if resume == store.StateComplete {
			return &Decision{
				Reply:        "All set. Your pipeline is complete.",
				GraphChanged: true,
				Completed:    true,
			}, nil
		}
		return &Decision{
			Reply:        "Got it. Add a transform step, or tell me the destination.",
			IsQuestion:   true,
			GraphChanged: true,
		}, nil

	case store.StateComplete:
		// Completion is not a dead end: field answers edit the
		// matching node in place.
		if node := m.nodeWithField(s, it.FieldKey); node != nil {
			if err := s.Graph.SetField(node.ID, it.FieldKey, it.Value); err != nil {
				return nil, err
			}
			return &Decision{
				Reply:        fmt.Sprintf("Updated %q.", it.FieldKey),
				GraphChanged: true,
			}, nil
		}
		return &Decision{
			Reply:      fmt.Sprintf("No node in this pipeline has a field called %q.", it.FieldKey),
			IsQuestion: true,
		}, nil

	default:
		return m.clarify(s), nil
	}
}

// enterFieldClarification moves the session into AWAITING_FIELD when
// the freshly added node has required fields, returning the decision
// to ask for the first one. Returns nil when nothing is missing.
func (m *Machine) enterFieldClarification(s *store.Session, nodeID uuid.UUID, resume, ack string) *Decision {
	missing := s.Graph.MissingFields(nodeID)
	if len(missing) == 0 {
		return nil
	}
	s.Pending = &store.PendingSlot{
		NodeID:   nodeID.String(),
		FieldKey: missing[0],
		Resume:   resume,
	}
	s.State = store.StateAwaitingField
	return &Decision{
		Reply:        fmt.Sprintf("%s What should %q be?", ack, missing[0]),
		IsQuestion:   true,
		GraphChanged: true,
	}
}

func (m *Machine) reaskPending(s *store.Session) *Decision {
	return &Decision{
		Reply:      fmt.Sprintf("Still need a value for %q first. What should it be?", s.Pending.FieldKey),
		IsQuestion: true,
	}
}

// clarify emits a question and mutates nothing.
func (m *Machine) clarify(s *store.Session) *Decision {
	if s.LastMentioned != "" {
		switch s.State {
		case store.StateAwaitingSource:
			return &Decision{
				Reply:      fmt.Sprintf("Did you want to use %s as the source or the destination?", s.LastMentioned),
				IsQuestion: true,
			}
		case store.StateAwaitingTransform, store.StateAwaitingDestination:
			return &Decision{
				Reply:      fmt.Sprintf("Should %s be a transform step or the destination?", s.LastMentioned),
				IsQuestion: true,
			}
		}
	}
	var reply string
	switch s.State {
	case store.StateAwaitingSource:
		reply = "Which connector should the pipeline read from? For example: \"Connect Shopify to BigQuery\"."
	case store.StateAwaitingTransform:
		reply = "You can add a transform step, or name the destination connector."
	case store.StateAwaitingDestination:
		reply = "Which connector should the pipeline write to?"
	case store.StateAwaitingField:
		return m.reaskPending(s)
	default:
		reply = "The pipeline is complete. You can update a node's configuration, or start a new session."
	}
	return &Decision{Reply: reply, IsQuestion: true}
}

// inferRole fills the role slot for connector selections that arrived
// without one (the rule-based fallback does this): the machine assumes
// the user answered the question it last asked.
func (m *Machine) inferRole(s *store.Session) string {
	switch s.State {
	case store.StateAwaitingSource:
		return intent.RoleSource
	case store.StateAwaitingTransform, store.StateAwaitingDestination:
		return intent.RoleDestination
	}
	return ""
}

// nodeWithField finds the node whose connector declares or already
// carries the given field key.
func (m *Machine) nodeWithField(s *store.Session, key string) *graph.Node {
	for _, n := range []*graph.Node{s.Graph.Source(), s.Graph.Destination()} {
		if n != nil && nodeHasField(n, key) {
			return n
		}
	}
	for _, n := range s.Graph.Transforms() {
		if nodeHasField(n, key) {
			return n
		}
	}
	return nil
}

func nodeHasField(n *graph.Node, key string) bool {
	if n.Dummy {
		return false
	}
	if _, ok := n.Fields[key]; ok {
		return true
	}
	if n.Connector != nil {
		for _, k := range n.Connector.RequiredFields {
			if k == key {
				return true
			}
		}
	}
	return false
}
