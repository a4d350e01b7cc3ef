// Package proxy is the HTTP surface of the gateway: the OpenAI-compatible
// chat endpoint, the model listing, and the administrative endpoints for
// credential and conversation management.
//
// The chat handler owns the request orchestration: it correlates the
// inbound message history with a tracked conversation, picks a session
// credential, forwards either the full history or just the unsent tail
// upstream, and records the exchange so the next request correlates too.
package proxy
