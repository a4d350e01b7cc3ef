package upstream

import (
	"context"

	"github.com/Tivon521/grok2aoi/pkg/conversation"
)

// Session is the upstream pointer pair needed to continue generation
// without resending history.
type Session struct {
	// ConversationID is the opaque session identifier issued by the
	// backend when a conversation starts.
	ConversationID string

	// ResponseID points at the most recent response in the conversation.
	ResponseID string
}

// ChatRequest describes one upstream exchange.
type ChatRequest struct {
	// Credential is the raw session secret used for the exchange.
	Credential string

	// Model is the upstream model name.
	Model string

	// Messages are the turns to send. On a continuation this is only the
	// unsent tail, not the full history.
	Messages []conversation.Message

	// Session continues an existing upstream conversation when non-nil.
	// When nil a new conversation is started.
	Session *Session
}

// Delta is one increment of a streamed response. Err is set on the final
// delta when the stream failed mid-flight.
type Delta struct {
	Text string
	Err  error
}

// ChatStream is a running upstream exchange. The caller must drain
// Deltas until it closes.
type ChatStream struct {
	// Deltas yields response text increments and closes when the
	// exchange completes.
	Deltas <-chan Delta

	session Session
}

// Session returns the updated upstream pointers. Valid only after
// Deltas has closed.
func (s *ChatStream) Session() Session {
	return s.session
}

// StaticStream builds an already-finished stream from text increments.
// Fake clients use it in tests.
func StaticStream(session Session, parts ...string) *ChatStream {
	ch := make(chan Delta, len(parts))
	for _, p := range parts {
		ch <- Delta{Text: p}
	}
	close(ch)
	return &ChatStream{Deltas: ch, session: session}
}

// ErrorStream builds a stream that fails after the given increments.
func ErrorStream(err error, parts ...string) *ChatStream {
	ch := make(chan Delta, len(parts)+1)
	for _, p := range parts {
		ch <- Delta{Text: p}
	}
	ch <- Delta{Err: err}
	close(ch)
	return &ChatStream{Deltas: ch}
}

// AssetStats summarizes a credential's generated asset store.
type AssetStats struct {
	Count int `json:"count"`
}

// Client is the upstream collaborator contract the handlers depend on.
type Client interface {
	// Chat starts or continues an upstream conversation.
	Chat(ctx context.Context, req ChatRequest) (*ChatStream, error)

	// ListAssets returns the credential's asset store summary.
	ListAssets(ctx context.Context, credential string) (AssetStats, error)

	// ClearAssets deletes every asset in the credential's store.
	ClearAssets(ctx context.Context, credential string) error
}
