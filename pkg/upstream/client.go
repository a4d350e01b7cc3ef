package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/conversation"
)

// HTTPClient is the real backend implementation of Client.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the configured backend.
func NewHTTPClient(cfg config.UpstreamConfig) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "upstream.client"),
	}
}

type chatPayload struct {
	Message          string   `json:"message"`
	ModelName        string   `json:"modelName,omitempty"`
	ParentResponseID string   `json:"parentResponseId,omitempty"`
	Temporary        bool     `json:"temporary"`
	FileAttachments  []string `json:"fileAttachments"`
}

// responseLine is one streamed JSON line from the chat endpoint. The
// backend interleaves conversation metadata, token increments and a
// final model response on the same stream.
type responseLine struct {
	Result struct {
		Conversation struct {
			ConversationID string `json:"conversationId"`
		} `json:"conversation"`
		Response struct {
			Token         string `json:"token"`
			ResponseID    string `json:"responseId"`
			ModelResponse struct {
				ResponseID string `json:"responseId"`
				Message    string `json:"message"`
			} `json:"modelResponse"`
		} `json:"response"`
	} `json:"result"`
}

// Chat implements Client. It posts to the new-conversation endpoint or,
// when req.Session is set, to the conversation's responses endpoint, and
// relays token increments through the returned stream.
func (c *HTTPClient) Chat(ctx context.Context, req ChatRequest) (*ChatStream, error) {
	path := "/rest/app-chat/conversations/new"
	payload := chatPayload{
		Message:         buildPrompt(req.Messages),
		ModelName:       req.Model,
		FileAttachments: []string{},
	}
	if req.Session != nil {
		path = fmt.Sprintf("/rest/app-chat/conversations/%s/responses", req.Session.ConversationID)
		payload.ParentResponseID = req.Session.ResponseID
	}

	resp, err := c.do(ctx, http.MethodPost, path, req.Credential, payload)
	if err != nil {
		return nil, err
	}

	deltas := make(chan Delta, 16)
	stream := &ChatStream{Deltas: deltas}
	if req.Session != nil {
		stream.session = *req.Session
	}

	go c.relay(resp.Body, stream, deltas)
	return stream, nil
}

// relay parses the line-delimited JSON response stream, forwarding token
// increments and capturing the session pointers before closing.
func (c *HTTPClient) relay(body io.ReadCloser, stream *ChatStream, deltas chan<- Delta) {
	defer body.Close()
	defer close(deltas)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed responseLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			deltas <- Delta{Err: &ParseError{RawLine: line, Cause: err}}
			return
		}

		if id := parsed.Result.Conversation.ConversationID; id != "" {
			stream.session.ConversationID = id
		}
		if id := parsed.Result.Response.ModelResponse.ResponseID; id != "" {
			stream.session.ResponseID = id
		} else if id := parsed.Result.Response.ResponseID; id != "" {
			stream.session.ResponseID = id
		}
		if tok := parsed.Result.Response.Token; tok != "" {
			deltas <- Delta{Text: tok}
		}
	}

	if err := scanner.Err(); err != nil {
		deltas <- Delta{Err: &RequestError{Message: "stream read failed", Cause: err}}
	}
}

type assetsPage struct {
	Assets []struct {
		AssetID string `json:"assetId"`
	} `json:"assets"`
}

// ListAssets implements Client.
func (c *HTTPClient) ListAssets(ctx context.Context, credential string) (AssetStats, error) {
	page, err := c.listAssets(ctx, credential)
	if err != nil {
		return AssetStats{}, err
	}
	return AssetStats{Count: len(page.Assets)}, nil
}

// ClearAssets implements Client. Per-asset delete failures abort the
// clear so the caller can classify the credential.
func (c *HTTPClient) ClearAssets(ctx context.Context, credential string) error {
	page, err := c.listAssets(ctx, credential)
	if err != nil {
		return err
	}

	for _, asset := range page.Assets {
		resp, err := c.do(ctx, http.MethodDelete, "/rest/assets/"+asset.AssetID, credential, nil)
		if err != nil {
			return err
		}
		resp.Body.Close()
	}

	c.logger.Info("cleared upstream assets", "count", len(page.Assets))
	return nil
}

func (c *HTTPClient) listAssets(ctx context.Context, credential string) (*assetsPage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/rest/app-chat/assets?pageSize=1000", credential, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page assetsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, &ParseError{Cause: err}
	}
	return &page, nil
}

// do sends one request with browser headers and the session cookie, and
// classifies non-2xx statuses into the package error types.
func (c *HTTPClient) do(ctx context.Context, method, path, credential string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range browserHeaders() {
		req.Header.Set(k, v)
	}
	req.Header.Set("Cookie", sessionCookie(credential))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Message: "request failed", Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	snippet := readSnippet(resp.Body)
	resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: snippet}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &QuotaError{Message: snippet}
	default:
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: snippet}
	}
}

func readSnippet(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(buf))
}

// buildPrompt flattens the outgoing turns into the single message string
// the backend accepts. A lone user turn is sent verbatim; multi-turn
// payloads carry role labels so the model sees the structure.
func buildPrompt(messages []conversation.Message) string {
	if len(messages) == 1 && messages[0].Role == conversation.RoleUser {
		return conversation.FlattenText(messages[0])
	}

	var parts []string
	for _, msg := range messages {
		text := conversation.FlattenText(msg)
		if text == "" {
			continue
		}
		parts = append(parts, string(msg.Role)+": "+text)
	}
	return strings.Join(parts, "\n\n")
}
