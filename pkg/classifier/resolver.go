package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/llm"
	"pipeline-chat-be/pkg/store"
)

// contextWindow bounds how many recent turns are embedded in the
// classification prompt.
const contextWindow = 12

// Resolver performs LLM-based intent resolution. One Generate call
// per utterance, temperature 0 for deterministic output. Malformed
// model output degrades to an Unrecognized intent, never an error;
// only transport failures surface, as kinded *Error values.
type Resolver struct {
	llmProvider llm.LLMProvider
	logger      *log.Logger
}

var _ Classifier = &Resolver{}

// NewResolver creates a new intent resolver
func NewResolver(llmProvider llm.LLMProvider, logger *log.Logger) *Resolver {
	return &Resolver{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

func (r *Resolver) Classify(ctx context.Context, turns []store.Turn, utterance string, knownConnectors []string) (*intent.Intent, error) {
	prompt := r.buildPrompt(turns, utterance, knownConnectors)

	response, err := r.llmProvider.Generate(ctx, prompt, llm.WithTemperature(0.0))
	if err != nil {
		cerr := mapTransportError(err)
		r.logger.Printf("[ERROR] Intent classification transport failure (%s): %v", cerr.Kind, err)
		return nil, cerr
	}

	it, err := r.parseIntent(response, utterance)
	if err != nil {
		r.logger.Printf("[WARN] Intent parsing failed, treating as unrecognized: %v", err)
		return intent.Unrecognized(utterance), nil
	}

	r.logger.Printf("[INTENT] Resolved: %s (Connector: %s, Role: %s, Confidence: %.2f)",
		it.Type, it.ConnectorName, it.Role, it.Confidence)

	return it, nil
}

func (r *Resolver) buildPrompt(turns []store.Turn, utterance string, knownConnectors []string) string {
	var prompt strings.Builder

	prompt.WriteString("<system>\n")
	prompt.WriteString("You are an intent analyzer for a data-pipeline builder. Your ONLY job is to classify what the user wants to DO.\n")
	prompt.WriteString("You do NOT answer questions. You only classify intent.\n")
	prompt.WriteString("</system>\n\n")

	prompt.WriteString("<known_connectors>\n")
	for _, name := range knownConnectors {
		prompt.WriteString(fmt.Sprintf("- %s\n", name))
	}
	prompt.WriteString("</known_connectors>\n\n")

	prompt.WriteString("<conversation>\n")
	recent := turns
	if len(recent) > contextWindow {
		recent = recent[len(recent)-contextWindow:]
	}
	for _, t := range recent {
		prompt.WriteString(fmt.Sprintf("%s: %s\n", t.Speaker, t.Text))
	}
	prompt.WriteString("</conversation>\n\n")

	prompt.WriteString("<user_query>\n")
	prompt.WriteString(utterance)
	prompt.WriteString("\n</user_query>\n\n")

	prompt.WriteString("<intent_definitions>\n")
	prompt.WriteString("Choose ONE intent that best matches what the user wants:\n\n")

	prompt.WriteString("CONNECTOR_SELECTION: User names a connector and the role is clear from the utterance\n")
	prompt.WriteString("  - Use when: 'connect Shopify to BigQuery' (Shopify=SOURCE, BigQuery=DESTINATION: emit the FIRST unplaced one)\n")
	prompt.WriteString("  - Use when: 'send it to Snowflake' (Snowflake=DESTINATION)\n")
	prompt.WriteString("  - Requires: connectorName, role (SOURCE|TRANSFORM|DESTINATION), confidence\n\n")

	prompt.WriteString("ROLE_CLARIFICATION: User answers a role question with a bare role word\n")
	prompt.WriteString("  - Use when: the utterance is just 'source' or 'destination' and <conversation> names a connector to attach it to\n")
	prompt.WriteString("  - Requires: connectorName (the one last mentioned), role (SOURCE|DESTINATION), confidence\n\n")

	prompt.WriteString("TRANSFORM_SELECTION: User asks for a transform step, named or placeholder\n")
	prompt.WriteString("  - Use when: 'add a dedupe step', 'put a transform in between' (placeholder)\n")
	prompt.WriteString("  - Requires: transformName (use 'placeholder' if unspecified)\n\n")

	prompt.WriteString("FIELD_ANSWER: User supplies a configuration value the system asked for\n")
	prompt.WriteString("  - Use when: the last system turn asked for a field and the user answers it\n")
	prompt.WriteString("  - Requires: fieldKey (the key that was asked for), value\n\n")

	prompt.WriteString("UNRECOGNIZED: Cannot determine intent\n")
	prompt.WriteString("  - Use only if the query is gibberish or unrelated to pipelines.\n")
	prompt.WriteString("</intent_definitions>\n\n")

	prompt.WriteString("<output_format>\n")
	prompt.WriteString("Respond with ONLY valid JSON:\n")
	prompt.WriteString("{\n")
	prompt.WriteString("  \"intent\": \"CONNECTOR_SELECTION|ROLE_CLARIFICATION|TRANSFORM_SELECTION|FIELD_ANSWER|UNRECOGNIZED\",\n")
	prompt.WriteString("  \"role\": \"SOURCE|TRANSFORM|DESTINATION\",\n")
	prompt.WriteString("  \"connectorName\": \"exact connector name, or empty\",\n")
	prompt.WriteString("  \"transformName\": \"transform name if TRANSFORM_SELECTION, otherwise empty\",\n")
	prompt.WriteString("  \"fieldKey\": \"field key if FIELD_ANSWER, otherwise empty\",\n")
	prompt.WriteString("  \"value\": \"field value if FIELD_ANSWER, otherwise empty\",\n")
	prompt.WriteString("  \"confidence\": 0.95\n")
	prompt.WriteString("}\n")
	prompt.WriteString("</output_format>")

	return prompt.String()
}

func (r *Resolver) parseIntent(response, utterance string) (*intent.Intent, error) {
	jsonContent := extractJSON(response)
	if jsonContent == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var it intent.Intent
	if err := json.Unmarshal([]byte(jsonContent), &it); err != nil {
		return nil, fmt.Errorf("JSON unmarshal failed: %w", err)
	}

	if !it.Normalize() {
		return nil, fmt.Errorf("intent shape invalid: %q", it.Type)
	}
	if it.Type == intent.TypeUnrecognized {
		it.RawText = utterance
	}

	return &it, nil
}

func extractJSON(response string) string {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx <= startIdx {
		return ""
	}

	return response[startIdx : endIdx+1]
}
