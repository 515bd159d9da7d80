package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"pipeline-chat-be/pkg/catalog"
	"pipeline-chat-be/pkg/classifier"
	"pipeline-chat-be/pkg/dialogue"
	"pipeline-chat-be/pkg/intent"
	"pipeline-chat-be/pkg/store"
)

// Offline conversation walkthrough: drives the dialogue machine with
// the rule-based classifier (no LLM, no server) and prints the
// resulting pipeline graph. Useful for eyeballing dialogue behavior.

type step struct {
	text string
	// Explicit intent for turns the rule-based classifier cannot
	// parse (field answers, transform requests).
	it *intent.Intent
}

func main() {
	color.Cyan("🚀 Pipeline Chat Simulation (offline, rule-based classification)\n")

	catalogPath := os.Getenv("CONNECTOR_CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "config/connectors.json"
	}
	registry, err := catalog.Load(catalogPath)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	color.Green("Loaded %d connectors from %s", len(registry.All()), catalogPath)

	fallback := classifier.NewFallback()
	machine := dialogue.NewMachine(registry, log.New(os.Stderr, "[SIM] ", log.LstdFlags))
	session := store.NewSession(uuid.NewString(), uuid.NewString())

	steps := []step{
		{text: "I want to pull orders from Shopify as the source"},
		{it: &intent.Intent{Type: intent.TypeFieldAnswer, FieldKey: "shop_domain", Value: "acme.myshopify.com", Confidence: 0.95}},
		{it: &intent.Intent{Type: intent.TypeFieldAnswer, FieldKey: "api_key", Value: "shpat_demo", Confidence: 0.95}},
		{it: &intent.Intent{Type: intent.TypeTransformSelection, TransformName: "clean up the rows", Confidence: 0.9, RawText: "clean up the rows first"}},
		{text: "then send it all to BigQuery as the destination"},
		{it: &intent.Intent{Type: intent.TypeFieldAnswer, FieldKey: "project_id", Value: "analytics-prod", Confidence: 0.95}},
		{it: &intent.Intent{Type: intent.TypeFieldAnswer, FieldKey: "dataset", Value: "shop_orders", Confidence: 0.95}},
	}

	for _, st := range steps {
		it := st.it
		userText := st.text
		if it == nil {
			session.Lock()
			session.Append(store.SpeakerUser, st.text)
			turns := session.RecentTurns(12)
			session.Unlock()
			it, _ = fallback.Classify(context.Background(), turns, st.text, registry.Names())
		} else {
			if userText == "" {
				userText = fmt.Sprintf("%s = %s", it.FieldKey, it.Value)
				if it.Type == intent.TypeTransformSelection {
					userText = it.RawText
				}
			}
			session.Lock()
			session.Append(store.SpeakerUser, userText)
			session.Unlock()
		}

		color.Yellow("\nUSER: %s", userText)

		session.Lock()
		decision, err := machine.Apply(session, it)
		session.Unlock()
		if err != nil {
			color.Red("Pipeline state error: %v", err)
			os.Exit(1)
		}

		color.Green("AI  : %s", decision.Reply)
		if decision.GraphChanged {
			color.Blue("      (canvas updated, state=%s)", session.State)
		}
		if decision.Completed {
			color.Cyan("      ✅ pipeline completed")
		}
	}

	color.Cyan("\nFinal pipeline graph:")
	snap := session.Graph.Snapshot()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Fatalf("Failed to render snapshot: %v", err)
	}
	fmt.Println(string(b))
}
