package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Tivon521/grok2aoi/pkg/batch"
	"github.com/Tivon521/grok2aoi/pkg/credential"
)

// assetDetail is the per-credential view of the upstream asset store.
type assetDetail struct {
	TokenMasked   string    `json:"token_masked"`
	Pool          string    `json:"pool"`
	Count         int       `json:"count"`
	Status        string    `json:"status"`
	LastClearedAt time.Time `json:"last_cleared_at,omitzero"`
}

// cacheStats reports the credential pools and, when a scope is
// requested, the live upstream asset counts. Scope "all" queries every
// credential; "token"/"tokens" query parameters narrow the probe.
func (h *Handler) cacheStats(w http.ResponseWriter, r *http.Request) {
	accounts := h.credentials.List()

	probe := h.probeTargets(r, accounts)
	details := make([]assetDetail, 0, len(probe))
	total := 0
	for _, info := range probe {
		detail := assetDetail{
			TokenMasked:   info.TokenMasked,
			Pool:          info.Pool,
			Status:        "ok",
			LastClearedAt: info.LastClearedAt,
		}
		stats, err := h.upstream.ListAssets(r.Context(), info.Token)
		if err != nil {
			detail.Status = "error: " + err.Error()
		} else {
			detail.Count = stats.Count
			total += stats.Count
		}
		details = append(details, detail)
	}

	status := "not_loaded"
	if len(probe) > 0 {
		status = "ok"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"online": map[string]any{
			"count":  total,
			"status": status,
		},
		"online_accounts": accounts,
		"online_details":  details,
	})
}

// probeTargets resolves which credentials the cache query should probe.
func (h *Handler) probeTargets(r *http.Request, accounts []credential.Info) []credential.Info {
	q := r.URL.Query()

	if tokens := splitTokens(q.Get("tokens")); len(tokens) > 0 {
		return matchAccounts(accounts, tokens)
	}
	if token := strings.TrimSpace(q.Get("token")); token != "" {
		return matchAccounts(accounts, []string{token})
	}
	if q.Get("scope") == "all" {
		return accounts
	}
	return nil
}

func splitTokens(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func matchAccounts(accounts []credential.Info, tokens []string) []credential.Info {
	wanted := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		wanted[t] = struct{}{}
	}
	var out []credential.Info
	for _, info := range accounts {
		if _, ok := wanted[info.Token]; ok {
			out = append(out, info)
		}
	}
	return out
}

type clearRequest struct {
	Token  string   `json:"token,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

type clearResult struct {
	TokenMasked string `json:"token_masked"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
}

// clearOnline clears upstream assets synchronously. With no tokens in
// the body a single credential is selected from the pool. Partial
// failures never fail the whole request; the summary carries them.
func (h *Handler) clearOnline(w http.ResponseWriter, r *http.Request) {
	tokens, ok := h.clearTargets(w, r, false)
	if !ok {
		return
	}

	results := make([]clearResult, 0, len(tokens))
	okCount, failCount := 0, 0
	for _, token := range tokens {
		res := clearResult{TokenMasked: credential.Mask(token), Status: "success"}
		if err := h.clearCredentialAssets(r.Context(), token); err != nil {
			res.Status = "error"
			res.Error = err.Error()
			failCount++
		} else {
			okCount++
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"summary": map[string]int{
			"total": len(tokens),
			"ok":    okCount,
			"fail":  failCount,
		},
		"results": results,
	})
}

// clearOnlineAsync runs the clear as a background batch task and returns
// the task id immediately.
func (h *Handler) clearOnlineAsync(w http.ResponseWriter, r *http.Request) {
	h.startBatch(w, r, h.clearCredentialAssets)
}

// loadOnlineAsync probes the asset stores of the selected credentials as
// a background batch task, warming the admin view.
func (h *Handler) loadOnlineAsync(w http.ResponseWriter, r *http.Request) {
	h.startBatch(w, r, func(ctx context.Context, token string) error {
		_, err := h.upstream.ListAssets(ctx, token)
		return err
	})
}

func (h *Handler) startBatch(w http.ResponseWriter, r *http.Request, fn batch.ItemFunc) {
	tokens, ok := h.clearTargets(w, r, true)
	if !ok {
		return
	}

	task := h.tasks.CreateTask(len(tokens))
	go func() {
		h.runner.Run(context.Background(), task, tokens, fn)
		h.tasks.ExpireTask(task.ID())
	}()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"task_id": task.ID(),
		"total":   len(tokens),
	})
}

// clearTargets parses the request body into the deduplicated credential
// list to operate on. Async batches require explicit tokens; the sync
// path falls back to selecting one from the pool.
func (h *Handler) clearTargets(w http.ResponseWriter, r *http.Request, requireTokens bool) ([]string, bool) {
	var req clearRequest
	if r.Body != nil {
		// An empty body means "pick a credential" on the sync path.
		_ = decodeLenient(r, &req)
	}

	tokens := req.Tokens
	if len(tokens) == 0 && req.Token != "" {
		tokens = []string{req.Token}
	}

	seen := make(map[string]struct{}, len(tokens))
	deduped := tokens[:0]
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		deduped = append(deduped, t)
	}

	if len(deduped) == 0 {
		if requireTokens {
			h.writeInvalidRequest(w, r, "missing_tokens", "no tokens provided")
			return nil, false
		}
		selected, err := h.credentials.Select(nil)
		if err != nil {
			h.writeUpstreamError(w, r, err)
			return nil, false
		}
		deduped = []string{selected}
	}
	return deduped, true
}

// decodeLenient tolerates an empty request body.
func decodeLenient(r *http.Request, into any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(into); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) clearCredentialAssets(ctx context.Context, token string) error {
	if err := h.upstream.ClearAssets(ctx, token); err != nil {
		reason, hasQuota := classifyFailure(err)
		h.credentials.RecordFailure(token, reason, hasQuota)
		return err
	}
	h.credentials.MarkCleared(token)
	return nil
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.PathValue("id"))
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task.Snapshot())
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.PathValue("id"))
	if err != nil {
		h.writeTaskError(w, r, err)
		return
	}

	accepted := task.Cancel()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"cancelled": accepted,
	})
}

func (h *Handler) writeTaskError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, batch.ErrTaskNotFound) {
		writeError(w, http.StatusNotFound, ErrorDetail{
			Message:   "task not found",
			Type:      "invalid_request_error",
			Code:      "task_not_found",
			RequestID: RequestIDFromContext(r.Context()),
		})
		return
	}
	writeError(w, http.StatusInternalServerError, ErrorDetail{
		Message:   err.Error(),
		Type:      "internal_error",
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func (h *Handler) conversationStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"conversations": h.conversations.Stats(),
	}
	if h.stats != nil {
		body["requests"] = h.stats.Summary()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) clearConversations(w http.ResponseWriter, r *http.Request) {
	h.conversations.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
