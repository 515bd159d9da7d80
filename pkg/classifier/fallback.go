package classifier

import (
	"context"
	"strings"

	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/store"
)

// fallbackConfidence is the fixed score for rule-based matches. Kept
// deliberately above the application threshold so the conversation can
// still make progress while the remote classifier is unavailable.
const fallbackConfidence = 0.6

// Fallback is the deterministic rule-based classifier used when the
// remote service is down. It recognizes literal "source"/"destination"
// tokens and any catalog connector name appearing verbatim in the
// utterance; everything else maps to Unrecognized.
type Fallback struct{}

var _ Classifier = &Fallback{}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Classify(_ context.Context, turns []store.Turn, utterance string, knownConnectors []string) (*intent.Intent, error) {
	lower := strings.ToLower(utterance)

	matched := ""
	for _, name := range knownConnectors {
		if strings.Contains(lower, strings.ToLower(name)) {
			matched = name
			break
		}
	}

	role := ""
	switch {
	case strings.Contains(lower, "source"):
		role = intent.RoleSource
	case strings.Contains(lower, "destination"):
		role = intent.RoleDestination
	}

	switch {
	case matched != "" && role != "":
		return &intent.Intent{
			Type:          intent.TypeConnectorSelection,
			Role:          role,
			ConnectorName: matched,
			Confidence:    fallbackConfidence,
		}, nil
	case role != "":
		// Bare role word: attach it to the connector last mentioned
		// in the conversation, if any.
		if last := lastMentioned(turns, knownConnectors); last != "" {
			return &intent.Intent{
				Type:          intent.TypeRoleClarification,
				Role:          role,
				ConnectorName: last,
				Confidence:    fallbackConfidence,
			}, nil
		}
	case matched != "":
		// Role left empty: the dialogue machine fills it from the
		// state it is currently waiting in.
		return &intent.Intent{
			Type:          intent.TypeConnectorSelection,
			ConnectorName: matched,
			Confidence:    fallbackConfidence,
		}, nil
	}

	return intent.Unrecognized(utterance), nil
}

// lastMentioned scans the conversation newest-first for a catalog name.
func lastMentioned(turns []store.Turn, knownConnectors []string) string {
	for i := len(turns) - 1; i >= 0; i-- {
		lower := strings.ToLower(turns[i].Text)
		for _, name := range knownConnectors {
			if strings.Contains(lower, strings.ToLower(name)) {
				return name
			}
		}
	}
	return ""
}
