package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/llm"
	"pipeline-chat-be/pkg/store"
)

// Classifier turns one user utterance, in the context of the running
// conversation and the known connector catalog, into a structured
// intent. Implementations must return either a well-formed intent
// (possibly Unrecognized) with nil error, or a transport *Error the
// caller can recover from.
type Classifier interface {
	Classify(ctx context.Context, turns []store.Turn, utterance string, knownConnectors []string) (*intent.Intent, error)
}

// Transport failure kinds, mapped from the provider's answer.
type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindRateLimit ErrorKind = "rate_limit"
	KindQuota     ErrorKind = "quota"
	KindNetwork   ErrorKind = "network"
)

// Error is a classification transport failure. Parse failures are not
// errors at this level; they degrade to an Unrecognized intent.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classification %s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// mapTransportError converts a provider failure into a kinded Error.
func mapTransportError(err error) *Error {
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch {
		case provErr.StatusCode == 401 || provErr.StatusCode == 403:
			return &Error{Kind: KindAuth, Err: err}
		case provErr.StatusCode == 429:
			// Providers reuse 429 for both throttling and exhausted
			// billing quota; the body disambiguates.
			if strings.Contains(provErr.Body, "quota") || strings.Contains(provErr.Body, "billing") {
				return &Error{Kind: KindQuota, Err: err}
			}
			return &Error{Kind: KindRateLimit, Err: err}
		case provErr.StatusCode == 402:
			return &Error{Kind: KindQuota, Err: err}
		}
		return &Error{Kind: KindNetwork, Err: err}
	}
	// Context timeouts and connection failures land here.
	return &Error{Kind: KindNetwork, Err: err}
}
