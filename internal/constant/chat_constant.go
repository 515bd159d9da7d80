package constant

const (
	// Greeting appended as the first system turn of every session.
	ChatInitialGreeting = "Hi! Describe the pipeline you want to build — for example: \"Connect Shopify to BigQuery\"."

	// Notice shown when classification transport fails and the
	// deterministic fallback takes over. The conversation never
	// crashes; at worst it admits to having trouble.
	ChatDegradedNotice = "(I'm having a little trouble understanding right now, so bear with me.)"
)
