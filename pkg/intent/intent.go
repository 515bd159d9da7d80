package intent

import "strings"

// Intent type tags.
const (
	TypeRoleClarification  = "ROLE_CLARIFICATION"
	TypeConnectorSelection = "CONNECTOR_SELECTION"
	TypeTransformSelection = "TRANSFORM_SELECTION"
	TypeFieldAnswer        = "FIELD_ANSWER"
	TypeUnrecognized       = "UNRECOGNIZED"
)

// Role values a classified utterance can assign to a connector.
const (
	RoleSource      = "SOURCE"
	RoleTransform   = "TRANSFORM"
	RoleDestination = "DESTINATION"
)

// Intent is a single classified user utterance. Produced fresh per
// turn and never persisted beyond the turn that generated it. The
// JSON tags match the classification service contract.
type Intent struct {
	Type          string  `json:"intent"`
	Role          string  `json:"role,omitempty"`
	ConnectorName string  `json:"connectorName,omitempty"`
	TransformName string  `json:"transformName,omitempty"`
	FieldKey      string  `json:"fieldKey,omitempty"`
	Value         string  `json:"value,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	RawText       string  `json:"rawText,omitempty"`
}

// Unrecognized wraps an utterance the classifier could not interpret.
func Unrecognized(rawText string) *Intent {
	return &Intent{Type: TypeUnrecognized, RawText: rawText}
}

// Normalize upper-cases the tag fields and reports whether the intent
// shape is one the dialogue machine understands.
func (i *Intent) Normalize() bool {
	i.Type = strings.ToUpper(strings.TrimSpace(i.Type))
	i.Role = strings.ToUpper(strings.TrimSpace(i.Role))

	switch i.Type {
	case TypeRoleClarification:
		// Role clarifications only ever assign endpoint roles.
		return i.ConnectorName != "" && (i.Role == RoleSource || i.Role == RoleDestination)
	case TypeConnectorSelection:
		if i.ConnectorName == "" {
			return false
		}
		// Empty role is allowed: the dialogue machine infers it from
		// the state it is waiting in.
		return i.Role == "" || i.Role == RoleSource || i.Role == RoleTransform || i.Role == RoleDestination
	case TypeTransformSelection:
		return i.TransformName != ""
	case TypeFieldAnswer:
		return i.FieldKey != "" && i.Value != ""
	case TypeUnrecognized:
		return true
	}
	return false
}
