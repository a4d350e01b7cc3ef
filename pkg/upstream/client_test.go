package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/conversation"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.UpstreamConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
}

func drain(t *testing.T, stream *ChatStream) (string, error) {
	t.Helper()
	var b strings.Builder
	for delta := range stream.Deltas {
		if delta.Err != nil {
			return b.String(), delta.Err
		}
		b.WriteString(delta.Text)
	}
	return b.String(), nil
}

func TestChatNewConversation(t *testing.T) {
	var gotPath, gotCookie string
	var gotPayload chatPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCookie = r.Header.Get("Cookie")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fmt.Fprintln(w, `{"result":{"conversation":{"conversationId":"g-123"}}}`)
		fmt.Fprintln(w, `{"result":{"response":{"token":"Hel"}}}`)
		fmt.Fprintln(w, `{"result":{"response":{"token":"lo"}}}`)
		fmt.Fprintln(w, `{"result":{"response":{"modelResponse":{"responseId":"r-9","message":"Hello"}}}}`)
	}))

	stream, err := client.Chat(context.Background(), ChatRequest{
		Credential: "secret-token",
		Model:      "grok-3",
		Messages:   []conversation.Message{conversation.Text(conversation.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	text, err := drain(t, stream)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if text != "Hello" {
		t.Errorf("streamed text = %q, want Hello", text)
	}
	if got := stream.Session(); got.ConversationID != "g-123" || got.ResponseID != "r-9" {
		t.Errorf("Session() = %+v, want g-123/r-9", got)
	}

	if gotPath != "/rest/app-chat/conversations/new" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.Contains(gotCookie, "sso=secret-token") {
		t.Errorf("Cookie = %q, want session cookie", gotCookie)
	}
	if gotPayload.Message != "hi" || gotPayload.ModelName != "grok-3" {
		t.Errorf("payload = %+v", gotPayload)
	}
	if gotPayload.ParentResponseID != "" {
		t.Errorf("new conversation carried parentResponseId %q", gotPayload.ParentResponseID)
	}
}

func TestChatContinuation(t *testing.T) {
	var gotPath string
	var gotPayload chatPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		fmt.Fprintln(w, `{"result":{"response":{"token":"ok"}}}`)
		fmt.Fprintln(w, `{"result":{"response":{"modelResponse":{"responseId":"r-10"}}}}`)
	}))

	stream, err := client.Chat(context.Background(), ChatRequest{
		Credential: "secret-token",
		Model:      "grok-3",
		Messages:   []conversation.Message{conversation.Text(conversation.RoleUser, "again")},
		Session:    &Session{ConversationID: "g-123", ResponseID: "r-9"},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if _, err := drain(t, stream); err != nil {
		t.Fatalf("stream error = %v", err)
	}

	if gotPath != "/rest/app-chat/conversations/g-123/responses" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload.ParentResponseID != "r-9" {
		t.Errorf("parentResponseId = %q, want r-9", gotPayload.ParentResponseID)
	}
	// Continuation advances the response pointer, keeps the conversation.
	if got := stream.Session(); got.ConversationID != "g-123" || got.ResponseID != "r-10" {
		t.Errorf("Session() = %+v, want g-123/r-10", got)
	}
}

func TestChatErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool {
			var ae *AuthError
			return errors.As(err, &ae)
		}},
		{"forbidden", http.StatusForbidden, func(err error) bool {
			var ae *AuthError
			return errors.As(err, &ae)
		}},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool {
			var qe *QuotaError
			return errors.As(err, &qe)
		}},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var re *RequestError
			return errors.As(err, &re) && re.StatusCode == http.StatusInternalServerError
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			_, err := client.Chat(context.Background(), ChatRequest{
				Credential: "secret",
				Messages:   []conversation.Message{conversation.Text(conversation.RoleUser, "hi")},
			})
			if err == nil {
				t.Fatal("Chat() error = nil")
			}
			if !tt.check(err) {
				t.Errorf("error = %v (%T), wrong classification", err, err)
			}
		})
	}
}

func TestChatMalformedStream(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"result":{"response":{"token":"partial"}}}`)
		fmt.Fprintln(w, `not json at all`)
	}))

	stream, err := client.Chat(context.Background(), ChatRequest{
		Credential: "secret",
		Messages:   []conversation.Message{conversation.Text(conversation.RoleUser, "hi")},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	text, err := drain(t, stream)
	if text != "partial" {
		t.Errorf("text before failure = %q", text)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("stream error = %v (%T), want *ParseError", err, err)
	}
}

func TestListAssets(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"assets":[{"assetId":"a-1"},{"assetId":"a-2"}]}`)
	}))

	stats, err := client.ListAssets(context.Background(), "secret")
	if err != nil {
		t.Fatalf("ListAssets() error = %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("Count = %d, want 2", stats.Count)
	}
}

func TestClearAssets(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(http.StatusOK)
			return
		}
		fmt.Fprintln(w, `{"assets":[{"assetId":"a-1"},{"assetId":"a-2"}]}`)
	}))

	if err := client.ClearAssets(context.Background(), "secret"); err != nil {
		t.Fatalf("ClearAssets() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deleted) != 2 {
		t.Fatalf("deleted %d assets, want 2", len(deleted))
	}
	if deleted[0] != "/rest/assets/a-1" || deleted[1] != "/rest/assets/a-2" {
		t.Errorf("delete paths = %v", deleted)
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		messages []conversation.Message
		want     string
	}{
		{
			name:     "single user turn verbatim",
			messages: []conversation.Message{conversation.Text(conversation.RoleUser, "hello")},
			want:     "hello",
		},
		{
			name: "multi turn labeled",
			messages: []conversation.Message{
				conversation.Text(conversation.RoleSystem, "be brief"),
				conversation.Text(conversation.RoleUser, "hello"),
			},
			want: "system: be brief\n\nuser: hello",
		},
		{
			name: "empty turns skipped",
			messages: []conversation.Message{
				conversation.Text(conversation.RoleSystem, ""),
				conversation.Text(conversation.RoleUser, "hello"),
				conversation.Text(conversation.RoleAssistant, "hi"),
			},
			want: "user: hello\n\nassistant: hi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildPrompt(tt.messages); got != tt.want {
				t.Errorf("buildPrompt() = %q, want %q", got, tt.want)
			}
		})
	}
}
