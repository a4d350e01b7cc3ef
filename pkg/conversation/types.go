package conversation

import (
	"strings"
	"time"
)

// Role identifies the author of a chat message.
type Role string

const (
	// RoleSystem is an instruction message.
	RoleSystem Role = "system"
	// RoleUser is an end-user message.
	RoleUser Role = "user"
	// RoleAssistant is a model response.
	RoleAssistant Role = "assistant"
	// RoleTool is a tool/function result.
	RoleTool Role = "tool"
)

// PartType identifies the kind of a message content part.
type PartType string

const (
	// PartText is plain text content.
	PartText PartType = "text"
	// PartImage is an image reference; ignored for fingerprinting.
	PartImage PartType = "image_url"
)

// Part is one piece of structured message content.
type Part struct {
	// Type discriminates the union.
	Type PartType

	// Text holds the content for PartText parts.
	Text string
}

// Message is a single chat message with structured content.
type Message struct {
	// Role is the message author.
	Role Role

	// Parts is the ordered content of the message.
	Parts []Part
}

// Text creates a plain-text message.
func Text(role Role, text string) Message {
	return Message{Role: role, Parts: []Part{{Type: PartText, Text: text}}}
}

// FlattenText concatenates the text parts of a message in original order.
// Non-text parts contribute nothing.
func FlattenText(msg Message) string {
	if len(msg.Parts) == 1 && msg.Parts[0].Type == PartText {
		return msg.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range msg.Parts {
		if p.Type == PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// Context is the tracked state of one logical client conversation.
type Context struct {
	// UpstreamConversationID is the opaque session identifier issued by
	// the upstream backend.
	UpstreamConversationID string `json:"upstream_conversation_id"`

	// LastResponseID is the opaque pointer to the most recent upstream
	// response, used to continue generation.
	LastResponseID string `json:"last_response_id"`

	// CreatedAt is when this conversation was first tracked.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is refreshed on every successful continuation; expiry is
	// measured against it.
	UpdatedAt time.Time `json:"updated_at"`

	// MessageCount is the number of exchanges recorded for this
	// conversation, at least 1.
	MessageCount int `json:"message_count"`

	// Credential established this session; continuations stay on it
	// unless explicitly migrated.
	Credential string `json:"credential"`

	// HistoryHash is the fingerprint used for auto-recognition. Empty
	// means not indexed.
	HistoryHash string `json:"history_hash"`

	// ShareLinkID is an optional cross-credential continuation token.
	ShareLinkID string `json:"share_link_id,omitempty"`
}

// Stats is a snapshot of manager statistics.
type Stats struct {
	// Count is the number of tracked conversations.
	Count int `json:"total_conversations"`

	// CredentialsWithConversations is the number of credentials that own
	// at least one conversation.
	CredentialsWithConversations int `json:"credentials_with_conversations"`

	// AvgMessagesPerConversation is the mean MessageCount, 0 when empty.
	AvgMessagesPerConversation float64 `json:"avg_messages_per_conversation"`

	// TTLSeconds is the configured conversation TTL in seconds.
	TTLSeconds int64 `json:"ttl_seconds"`

	// LastSweepTime is when the last expiry sweep finished; zero before
	// the first sweep.
	LastSweepTime time.Time `json:"last_sweep_time"`

	// TotalEverCleaned counts every conversation removed by sweeps since
	// startup.
	TotalEverCleaned int `json:"total_cleaned"`

	// SweepActive reports whether the periodic sweep is scheduled.
	SweepActive bool `json:"sweep_active"`
}
