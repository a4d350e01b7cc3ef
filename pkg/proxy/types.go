package proxy

import (
	"encoding/json"
	"fmt"

	"github.com/Tivon521/grok2aoi/pkg/conversation"
)

// ChatCompletionRequest is the OpenAI-compatible chat request body. The
// conversation_id field is a gateway extension: clients that track the
// identifier get the explicit fast path and skip history correlation.
type ChatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	Stream         bool          `json:"stream,omitempty"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// ChatMessage is one inbound turn. Content is either a plain string or a
// list of typed parts, so it stays raw until conversion.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toMessage converts the wire shape into the internal tagged form.
func (m ChatMessage) toMessage() (conversation.Message, error) {
	role := conversation.Role(m.Role)
	switch role {
	case conversation.RoleSystem, conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool:
	default:
		return conversation.Message{}, fmt.Errorf("unknown message role %q", m.Role)
	}

	if len(m.Content) == 0 {
		return conversation.Message{Role: role}, nil
	}

	var text string
	if err := json.Unmarshal(m.Content, &text); err == nil {
		return conversation.Text(role, text), nil
	}

	var parts []contentPart
	if err := json.Unmarshal(m.Content, &parts); err != nil {
		return conversation.Message{}, fmt.Errorf("message content must be a string or part list: %w", err)
	}

	msg := conversation.Message{Role: role}
	for _, p := range parts {
		part := conversation.Part{Type: conversation.PartType(p.Type), Text: p.Text}
		msg.Parts = append(msg.Parts, part)
	}
	return msg, nil
}

func convertMessages(in []ChatMessage) ([]conversation.Message, error) {
	out := make([]conversation.Message, 0, len(in))
	for i, m := range in {
		msg, err := m.toMessage()
		if err != nil {
			return nil, fmt.Errorf("messages[%d]: %w", i, err)
		}
		out = append(out, msg)
	}
	return out, nil
}

// ChatCompletionResponse is the non-streaming response body.
type ChatCompletionResponse struct {
	ID             string   `json:"id"`
	Object         string   `json:"object"`
	Created        int64    `json:"created"`
	Model          string   `json:"model"`
	Choices        []Choice `json:"choices"`
	ConversationID string   `json:"conversation_id,omitempty"`
}

// Choice is one completion alternative. The gateway always returns one.
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// ResponseMessage is the assistant turn of a completion.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionChunk is one SSE frame of a streaming response.
type ChatCompletionChunk struct {
	ID             string        `json:"id"`
	Object         string        `json:"object"`
	Created        int64         `json:"created"`
	Model          string        `json:"model"`
	Choices        []ChunkChoice `json:"choices"`
	ConversationID string        `json:"conversation_id,omitempty"`
}

// ChunkChoice is one choice of a streaming frame.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta carries the incremental fields of a streaming frame.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Model is one entry of the model listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the /v1/models response body.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorResponse is the OpenAI-shaped error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
