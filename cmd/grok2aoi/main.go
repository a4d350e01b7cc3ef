// Grok2aoi is an OpenAI-compatible HTTP gateway for a web-session AI
// backend.
//
// It accepts standard chat completion requests, correlates them with
// previously seen conversations through content-addressed history
// hashing, and proxies them upstream over rotating session credentials:
//   - OpenAI-compatible /v1/chat/completions with SSE streaming
//   - Conversation continuity without client-side session handling
//   - Credential pool rotation with health tracking and hot reload
//   - Administrative batch operations over the credential fleet
//
// Usage:
//
//	# Start the gateway with the default configuration
//	grok2aoi run
//
//	# Start with a custom configuration file
//	grok2aoi run --config /path/to/config.yaml
//
//	# Validate a configuration file without starting
//	grok2aoi validate --config /path/to/config.yaml
//
//	# Show version information
//	grok2aoi version
package main

func main() {
	Execute()
}
