package proxy

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tivon521/grok2aoi/pkg/batch"
	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/conversation"
	"github.com/Tivon521/grok2aoi/pkg/credential"
	"github.com/Tivon521/grok2aoi/pkg/stats"
	"github.com/Tivon521/grok2aoi/pkg/telemetry/metrics"
	"github.com/Tivon521/grok2aoi/pkg/upstream"
)

// selection retries after a credential failure, when no session affinity
// pins the conversation to one credential
const maxCredentialAttempts = 3

// Handler serves the gateway's HTTP endpoints. All collaborators are
// injected; the handler holds no global state.
type Handler struct {
	cfg           *config.Config
	conversations *conversation.Manager
	credentials   *credential.Pool
	upstream      upstream.Client
	tasks         *batch.Registry
	runner        *batch.Runner
	stats         *stats.Tracker
	metrics       *metrics.Collector
	logger        *slog.Logger

	now func() time.Time
}

// NewHandler wires the HTTP surface. The stats tracker and metrics
// collector may be nil.
func NewHandler(
	cfg *config.Config,
	conversations *conversation.Manager,
	credentials *credential.Pool,
	client upstream.Client,
	tasks *batch.Registry,
	runner *batch.Runner,
	tracker *stats.Tracker,
	collector *metrics.Collector,
) *Handler {
	return &Handler{
		cfg:           cfg,
		conversations: conversations,
		credentials:   credentials,
		upstream:      client,
		tasks:         tasks,
		runner:        runner,
		stats:         tracker,
		metrics:       collector,
		logger:        slog.Default().With("component", "proxy"),
		now:           time.Now,
	}
}

// Register installs every route on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	api := BearerAuth(h.cfg.Auth.APIKeys)
	admin := AdminAuth(h.cfg.Auth.AdminKey)

	mux.Handle("POST /v1/chat/completions", RequestID(api(http.HandlerFunc(h.chatCompletions))))
	mux.Handle("GET /v1/models", RequestID(api(http.HandlerFunc(h.listModels))))

	mux.Handle("GET /admin/cache", RequestID(admin(http.HandlerFunc(h.cacheStats))))
	mux.Handle("POST /admin/cache/online/clear", RequestID(admin(http.HandlerFunc(h.clearOnline))))
	mux.Handle("POST /admin/cache/online/clear/async", RequestID(admin(http.HandlerFunc(h.clearOnlineAsync))))
	mux.Handle("POST /admin/cache/online/load/async", RequestID(admin(http.HandlerFunc(h.loadOnlineAsync))))
	mux.Handle("GET /admin/tasks/{id}", RequestID(admin(http.HandlerFunc(h.getTask))))
	mux.Handle("POST /admin/tasks/{id}/cancel", RequestID(admin(http.HandlerFunc(h.cancelTask))))
	mux.Handle("GET /admin/conversations/stats", RequestID(admin(http.HandlerFunc(h.conversationStats))))
	mux.Handle("POST /admin/conversations/clear", RequestID(admin(http.HandlerFunc(h.clearConversations))))

	mux.HandleFunc("GET /health", h.health)
	if h.metrics != nil && h.cfg.Telemetry.Metrics.Enabled {
		mux.Handle("GET /metrics", h.metrics.Handler())
	}
}

// exchange is the resolved plan for one upstream round trip.
type exchange struct {
	conversationID string
	credential     string
	session        *upstream.Session
	outbound       []conversation.Message
	suggestedID    string
}

func (h *Handler) chatCompletions(w http.ResponseWriter, r *http.Request) {
	start := h.now()
	requestID := RequestIDFromContext(r.Context())

	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeInvalidRequest(w, r, "invalid_json", "request body is not valid JSON")
		return
	}
	if req.Model == "" {
		h.writeInvalidRequest(w, r, "missing_model", "model is required")
		return
	}
	if len(req.Messages) == 0 {
		h.writeInvalidRequest(w, r, "missing_messages", "messages must not be empty")
		return
	}

	messages, err := convertMessages(req.Messages)
	if err != nil {
		h.writeInvalidRequest(w, r, "invalid_messages", err.Error())
		return
	}

	plan := h.resolveExchange(strings.TrimSpace(req.ConversationID), messages)

	h.logger.Info("chat request",
		"request_id", requestID,
		"model", req.Model,
		"stream", req.Stream,
		"conversation_id", plan.conversationID,
		"continuation", plan.session != nil,
	)

	stream, err := h.dispatch(r, &plan, req.Model)
	if err != nil {
		h.recordOutcome(req.Model, false, start)
		h.writeUpstreamError(w, r, err)
		return
	}

	if req.Stream {
		h.streamResponse(w, r, &req, &plan, stream, messages, start)
		return
	}

	var text strings.Builder
	for delta := range stream.Deltas {
		if delta.Err != nil {
			h.credentials.RecordFailure(plan.credential, "stream", true)
			h.recordOutcome(req.Model, false, start)
			h.writeUpstreamError(w, r, delta.Err)
			return
		}
		text.WriteString(delta.Text)
	}

	convID := h.recordExchange(&plan, stream.Session(), messages)
	h.recordOutcome(req.Model, true, start)

	writeJSON(w, http.StatusOK, ChatCompletionResponse{
		ID:      completionID(),
		Object:  "chat.completion",
		Created: h.now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Message:      ResponseMessage{Role: "assistant", Content: text.String()},
			FinishReason: "stop",
		}},
		ConversationID: convID,
	})
}

// resolveExchange decides whether the request continues a tracked
// conversation. An explicit id wins; otherwise the history fingerprint
// is matched against the reverse index. On a hit only the newest user
// turn travels upstream, on a miss the full history does. An explicit id
// with no live context becomes the suggested id of the new conversation.
func (h *Handler) resolveExchange(explicitID string, messages []conversation.Message) exchange {
	plan := exchange{outbound: messages}

	id := explicitID
	if id == "" {
		id, _ = h.conversations.FindByHistory(messages)
	}
	if id == "" {
		return plan
	}

	ctx, ok := h.conversations.Get(id)
	if !ok {
		plan.suggestedID = explicitID
		return plan
	}

	plan.conversationID = id
	plan.credential = ctx.Credential
	plan.session = &upstream.Session{
		ConversationID: ctx.UpstreamConversationID,
		ResponseID:     ctx.LastResponseID,
	}
	plan.outbound = tailMessages(messages)
	return plan
}

// tailMessages returns the newest user turn, the only part of the
// history the upstream session has not seen.
func tailMessages(messages []conversation.Message) []conversation.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == conversation.RoleUser {
			return messages[i : i+1]
		}
	}
	return messages[len(messages)-1:]
}

// dispatch selects a credential and starts the upstream exchange,
// retrying on fresh credentials after failures. A continuation is pinned
// to its conversation's credential and never retried elsewhere.
func (h *Handler) dispatch(r *http.Request, plan *exchange, model string) (*upstream.ChatStream, error) {
	exclude := make(map[string]struct{})

	for attempt := 0; attempt < maxCredentialAttempts; attempt++ {
		if plan.credential == "" {
			selected, err := h.credentials.Select(exclude)
			if err != nil {
				return nil, err
			}
			plan.credential = selected
		}

		stream, err := h.upstream.Chat(r.Context(), upstream.ChatRequest{
			Credential: plan.credential,
			Model:      model,
			Messages:   plan.outbound,
			Session:    plan.session,
		})
		if err == nil {
			return stream, nil
		}

		reason, hasQuota := classifyFailure(err)
		h.credentials.RecordFailure(plan.credential, reason, hasQuota)

		if plan.session != nil {
			// Session affinity: the conversation lives on this
			// credential, another one cannot continue it.
			return nil, err
		}

		h.logger.Warn("retrying on another credential",
			"request_id", RequestIDFromContext(r.Context()),
			"credential", credential.Mask(plan.credential),
			"reason", reason,
			"attempt", attempt+1,
		)
		exclude[plan.credential] = struct{}{}
		plan.credential = ""
	}

	return nil, fmt.Errorf("exhausted %d credential attempts", maxCredentialAttempts)
}

// recordExchange persists the outcome of a finished exchange and returns
// the client-facing conversation id.
func (h *Handler) recordExchange(plan *exchange, session upstream.Session, messages []conversation.Message) string {
	h.credentials.RecordSuccess(plan.credential)

	if plan.conversationID != "" {
		h.conversations.Update(plan.conversationID, session.ResponseID, conversation.UpdateOptions{
			Messages: messages,
		})
		return plan.conversationID
	}

	return h.conversations.Create(plan.credential, session.ConversationID, session.ResponseID,
		conversation.CreateOptions{
			Messages:    messages,
			SuggestedID: plan.suggestedID,
		})
}

func (h *Handler) streamResponse(
	w http.ResponseWriter,
	r *http.Request,
	req *ChatCompletionRequest,
	plan *exchange,
	stream *upstream.ChatStream,
	messages []conversation.Message,
	start time.Time,
) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeInvalidRequest(w, r, "streaming_unsupported", "connection does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	chunkID := completionID()
	created := h.now().Unix()

	send := func(chunk ChatCompletionChunk) {
		payload, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	// Role preamble. A known conversation id rides on the first frame;
	// for a new conversation it is only available on the final one.
	send(ChatCompletionChunk{
		ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
		Choices:        []ChunkChoice{{Delta: ChunkDelta{Role: "assistant"}}},
		ConversationID: plan.conversationID,
	})

	for delta := range stream.Deltas {
		if delta.Err != nil {
			h.credentials.RecordFailure(plan.credential, "stream", true)
			h.recordOutcome(req.Model, false, start)
			reason := "error"
			send(ChatCompletionChunk{
				ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
				Choices: []ChunkChoice{{
					Delta:        ChunkDelta{Content: "Error: " + delta.Err.Error()},
					FinishReason: &reason,
				}},
			})
			fmt.Fprint(w, "data: [DONE]\n\n")
			flusher.Flush()
			return
		}
		send(ChatCompletionChunk{
			ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
			Choices: []ChunkChoice{{Delta: ChunkDelta{Content: delta.Text}}},
		})
	}

	convID := h.recordExchange(plan, stream.Session(), messages)
	h.recordOutcome(req.Model, true, start)

	stop := "stop"
	send(ChatCompletionChunk{
		ID: chunkID, Object: "chat.completion.chunk", Created: created, Model: req.Model,
		Choices:        []ChunkChoice{{Delta: ChunkDelta{}, FinishReason: &stop}},
		ConversationID: convID,
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

var knownModels = []string{"grok-3", "grok-3-thinking", "grok-4"}

func (h *Handler) listModels(w http.ResponseWriter, r *http.Request) {
	list := ModelList{Object: "list"}
	for _, id := range knownModels {
		list.Data = append(list.Data, Model{
			ID:      id,
			Object:  "model",
			Created: h.now().Unix(),
			OwnedBy: "xai",
		})
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) recordOutcome(model string, success bool, start time.Time) {
	if h.stats != nil {
		h.stats.Record(model, success)
	}
	if h.metrics != nil {
		status := "ok"
		if !success {
			status = "error"
		}
		h.metrics.Requests().Record(model, status, h.now().Sub(start))
	}
}

// classifyFailure maps an upstream error to the credential pool's
// failure taxonomy.
func classifyFailure(err error) (reason string, hasQuota bool) {
	var qe *upstream.QuotaError
	if errors.As(err, &qe) {
		return "quota", false
	}
	var ae *upstream.AuthError
	if errors.As(err, &ae) {
		return "invalid", true
	}
	return "upstream", true
}

func (h *Handler) writeInvalidRequest(w http.ResponseWriter, r *http.Request, code, message string) {
	writeError(w, http.StatusBadRequest, ErrorDetail{
		Message:   message,
		Type:      "invalid_request_error",
		Code:      code,
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func (h *Handler) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := RequestIDFromContext(r.Context())

	status := http.StatusBadGateway
	errType := "upstream_error"
	code := "upstream_error"
	switch {
	case errors.Is(err, credential.ErrNoCredentials):
		status = http.StatusServiceUnavailable
		errType = "insufficient_quota"
		code = "no_credentials"
	case errors.Is(err, credential.ErrAllExcluded):
		status = http.StatusServiceUnavailable
		errType = "insufficient_quota"
		code = "all_credentials_excluded"
	}

	h.logger.Error("chat request failed", "request_id", requestID, "error", err)
	writeError(w, status, ErrorDetail{
		Message:   err.Error(),
		Type:      errType,
		Code:      code,
		RequestID: requestID,
	})
}

func completionID() string {
	id := uuid.New()
	return "chatcmpl-" + hex.EncodeToString(id[:12])
}
