package conversation

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/storage"
	"github.com/Tivon521/grok2aoi/pkg/telemetry/metrics"
)

// storageKey is the blob-store key under which all conversation state is
// persisted as one document.
const storageKey = "conversations"

// saveTimeout bounds a single background persistence write.
const saveTimeout = 10 * time.Second

// persistedState is the durable snapshot format.
type persistedState struct {
	Conversations           map[string]*Context `json:"conversations"`
	CredentialConversations map[string][]string `json:"credential_conversations"`
}

// Manager tracks conversation contexts, correlates stateless requests with
// prior upstream sessions via history fingerprints, and enforces TTL and
// per-credential capacity. All indices live under one mutex; callers never
// touch them directly.
type Manager struct {
	mu sync.Mutex

	// conversations is the primary store: conversation id -> context.
	conversations map[string]*Context

	// hashIndex is the reverse index: history hash -> conversation id.
	// Every non-empty hash in the primary store appears here exactly once.
	hashIndex map[string]string

	// byCredential holds each credential's conversation ids in creation
	// order; FIFO eviction trims the front.
	byCredential map[string][]string

	ttl              time.Duration
	maxPerCredential int
	sweepInterval    time.Duration

	store   storage.BlobStore
	metrics *metrics.ConversationMetrics
	logger  *slog.Logger

	cron        *cron.Cron
	sweepActive bool
	lastSweep   time.Time
	totalSwept  int

	saveCh  chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool

	// now is stubbed in tests.
	now func() time.Time
}

// NewManager creates a conversation manager. The blob store and metrics
// may be nil, in which case persistence and instrumentation are skipped.
func NewManager(cfg config.ConversationConfig, store storage.BlobStore, cm *metrics.ConversationMetrics) *Manager {
	return &Manager{
		conversations:    make(map[string]*Context),
		hashIndex:        make(map[string]string),
		byCredential:     make(map[string][]string),
		ttl:              cfg.TTL,
		maxPerCredential: cfg.MaxPerCredential,
		sweepInterval:    cfg.SweepInterval,
		store:            store,
		metrics:          cm,
		logger:           slog.Default().With("component", "conversation.manager"),
		saveCh:           make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
		now:              time.Now,
	}
}

// Start loads persisted state, runs one synchronous expiry sweep, and
// starts the background saver and the periodic sweep schedule. It must be
// called once before the manager serves requests.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("conversation manager already started")
	}
	m.started = true
	m.mu.Unlock()

	if err := m.load(ctx); err != nil {
		// In-memory state starts empty; a broken durable copy is
		// operational, not fatal.
		m.logger.Error("failed to load persisted conversations", "error", err)
	}

	swept := m.SweepExpired()

	m.wg.Add(1)
	go m.runSaver()

	m.cron = cron.New()
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", m.sweepInterval), func() {
		if n := m.SweepExpired(); n > 0 {
			m.logger.Info("sweep removed expired conversations", "count", n)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule conversation sweep: %w", err)
	}
	m.cron.Start()

	m.mu.Lock()
	m.sweepActive = true
	count := len(m.conversations)
	m.mu.Unlock()

	m.logger.Info("conversation manager started",
		"loaded", count,
		"swept_at_startup", swept,
		"ttl", m.ttl,
		"sweep_interval", m.sweepInterval,
	)
	return nil
}

// Close stops the sweep schedule, flushes state to the blob store, and
// waits for the background saver to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	m.sweepActive = false
	m.mu.Unlock()

	if m.cron != nil {
		<-m.cron.Stop().Done()
	}

	close(m.stopCh)
	m.wg.Wait()
	m.logger.Info("conversation manager stopped")
}

// FindByHistory resolves a message history to a previously tracked
// conversation id. The lookup fingerprint excludes the newest user turn,
// so a continuation request matches the hash stored after the previous
// turn. A hit on an expired conversation is treated as absent and the
// stale reverse-index entry is dropped.
func (m *Manager) FindByHistory(messages []Message) (string, bool) {
	if len(messages) == 0 {
		return "", false
	}

	hash := HistoryHash(messages, true)
	if hash == "" {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.hashIndex[hash]
	if !ok {
		m.recordMiss()
		return "", false
	}

	ctx, live := m.conversations[id]
	if !live || m.expiredLocked(ctx) {
		// Self-healing: drop only the stale reverse mapping here; the
		// context itself (if still present) is reaped by Get or the sweep.
		delete(m.hashIndex, hash)
		m.recordMiss()
		return "", false
	}

	m.recordHit()
	m.logger.Info("correlated conversation by history", "conversation_id", id, "hash", hash)
	return id, true
}

// CreateOptions carries the optional inputs to Create.
type CreateOptions struct {
	// Messages, when present, seed the storage fingerprint.
	Messages []Message

	// ShareLinkID is an optional cross-credential continuation token.
	ShareLinkID string

	// SuggestedID, when non-empty, is used as the conversation id instead
	// of a generated one.
	SuggestedID string
}

// Create tracks a new conversation and returns its client-facing id.
// The storage fingerprint covers the full message list including the
// newest user turn. Inserting beyond the credential's capacity evicts its
// oldest conversations. The updated state is persisted asynchronously.
func (m *Manager) Create(credential, upstreamConvID, upstreamRespID string, opts CreateOptions) string {
	id := opts.SuggestedID
	if id == "" {
		id = newConversationID()
	}

	hash := ""
	if len(opts.Messages) > 0 {
		hash = HistoryHash(opts.Messages, false)
	}

	now := m.now()
	ctx := &Context{
		UpstreamConversationID: upstreamConvID,
		LastResponseID:         upstreamRespID,
		CreatedAt:              now,
		UpdatedAt:              now,
		MessageCount:           1,
		Credential:             credential,
		HistoryHash:            hash,
		ShareLinkID:            opts.ShareLinkID,
	}

	m.mu.Lock()
	m.conversations[id] = ctx
	if hash != "" {
		m.hashIndex[hash] = id
	}
	m.byCredential[credential] = append(m.byCredential[credential], id)
	evicted := m.enforceCapLocked(credential)
	m.updateActiveLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordRemoved("evicted", evicted)
	}
	m.logger.Info("created conversation",
		"conversation_id", id,
		"upstream_conversation_id", upstreamConvID,
		"hash", hash,
		"evicted", evicted,
	)

	m.scheduleSave()
	return id
}

// Get returns a copy of the live context for the given conversation id.
// An expired context is deleted (with its index entries) and reported as
// absent. Reads of live contexts do not mutate timestamps.
func (m *Manager) Get(id string) (Context, bool) {
	m.mu.Lock()

	ctx, ok := m.conversations[id]
	if !ok {
		m.mu.Unlock()
		return Context{}, false
	}

	if m.expiredLocked(ctx) {
		m.deleteLocked(id, ctx)
		m.updateActiveLocked()
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.RecordRemoved("expired", 1)
		}
		m.logger.Info("conversation expired", "conversation_id", id)
		m.scheduleSave()
		return Context{}, false
	}

	snapshot := *ctx
	m.mu.Unlock()
	return snapshot, true
}

// UpdateOptions carries the optional inputs to Update. Nil pointer fields
// leave the stored value untouched.
type UpdateOptions struct {
	// Messages, when present, refresh the storage fingerprint.
	Messages []Message

	// ShareLinkID overwrites the stored share link when non-nil.
	ShareLinkID *string

	// UpstreamConversationID overwrites the upstream session id when
	// non-nil.
	UpstreamConversationID *string

	// Credential migrates the conversation to another credential when
	// non-nil. The per-credential lists are not reordered.
	Credential *string
}

// Update records a successful continuation: it refreshes the response
// pointer and timestamp, increments the message count, and re-indexes the
// history fingerprint when the message list changed it. Unknown ids are a
// warning-level no-op.
func (m *Manager) Update(id, upstreamRespID string, opts UpdateOptions) {
	m.mu.Lock()

	ctx, ok := m.conversations[id]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("update for unknown conversation", "conversation_id", id)
		return
	}

	ctx.LastResponseID = upstreamRespID
	ctx.UpdatedAt = m.now()
	ctx.MessageCount++

	if opts.ShareLinkID != nil {
		ctx.ShareLinkID = *opts.ShareLinkID
	}
	if opts.UpstreamConversationID != nil {
		ctx.UpstreamConversationID = *opts.UpstreamConversationID
	}
	if opts.Credential != nil && *opts.Credential != ctx.Credential {
		m.moveCredentialLocked(id, ctx.Credential, *opts.Credential)
		ctx.Credential = *opts.Credential
	}

	if len(opts.Messages) > 0 {
		newHash := HistoryHash(opts.Messages, false)
		if newHash != "" && newHash != ctx.HistoryHash {
			if ctx.HistoryHash != "" {
				delete(m.hashIndex, ctx.HistoryHash)
			}
			ctx.HistoryHash = newHash
			m.hashIndex[newHash] = id
			m.logger.Debug("conversation hash refreshed", "conversation_id", id, "hash", newHash)
		}
	}

	count := ctx.MessageCount
	m.mu.Unlock()

	m.logger.Debug("updated conversation", "conversation_id", id, "message_count", count)
	m.scheduleSave()
}

// Delete removes a conversation and its index entries. Unknown ids are
// ignored.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	ctx, ok := m.conversations[id]
	if ok {
		m.deleteLocked(id, ctx)
		m.updateActiveLocked()
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if m.metrics != nil {
		m.metrics.RecordRemoved("deleted", 1)
	}
	m.logger.Info("deleted conversation", "conversation_id", id)
	m.scheduleSave()
}

// SweepExpired removes every conversation whose last update is older than
// the TTL and returns the number removed.
func (m *Manager) SweepExpired() int {
	m.mu.Lock()

	var expired []string
	for id, ctx := range m.conversations {
		if m.expiredLocked(ctx) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.deleteLocked(id, m.conversations[id])
	}

	m.lastSweep = m.now()
	m.totalSwept += len(expired)
	m.updateActiveLocked()
	m.mu.Unlock()

	if len(expired) > 0 {
		if m.metrics != nil {
			m.metrics.RecordRemoved("expired", len(expired))
		}
		m.scheduleSave()
	}
	return len(expired)
}

// ClearAll empties every index and persists the empty state. Used for
// administrative reset.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	cleared := len(m.conversations)
	m.conversations = make(map[string]*Context)
	m.hashIndex = make(map[string]string)
	m.byCredential = make(map[string][]string)
	m.updateActiveLocked()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordRemoved("cleared", cleared)
	}
	m.logger.Info("cleared all conversations", "count", cleared)
	m.scheduleSave()
}

// Stats returns a snapshot of manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, ctx := range m.conversations {
		total += ctx.MessageCount
	}
	avg := 0.0
	if len(m.conversations) > 0 {
		avg = float64(total) / float64(len(m.conversations))
	}

	return Stats{
		Count:                        len(m.conversations),
		CredentialsWithConversations: len(m.byCredential),
		AvgMessagesPerConversation:   avg,
		TTLSeconds:                   int64(m.ttl.Seconds()),
		LastSweepTime:                m.lastSweep,
		TotalEverCleaned:             m.totalSwept,
		SweepActive:                  m.sweepActive,
	}
}

// expiredLocked reports whether a context has outlived the TTL.
func (m *Manager) expiredLocked(ctx *Context) bool {
	return m.now().Sub(ctx.UpdatedAt) > m.ttl
}

// deleteLocked removes a context and all of its index entries. The caller
// holds the mutex and has verified the context exists.
func (m *Manager) deleteLocked(id string, ctx *Context) {
	delete(m.conversations, id)
	if ctx.HistoryHash != "" {
		// Guard against the hash having been re-pointed at another
		// conversation in the meantime.
		if owner, ok := m.hashIndex[ctx.HistoryHash]; ok && owner == id {
			delete(m.hashIndex, ctx.HistoryHash)
		}
	}
	m.removeFromCredentialLocked(id, ctx.Credential)
}

// removeFromCredentialLocked drops id from a credential's ordered list,
// tolerating "not present".
func (m *Manager) removeFromCredentialLocked(id, credential string) {
	ids := m.byCredential[credential]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(m.byCredential, credential)
	} else {
		m.byCredential[credential] = ids
	}
}

// moveCredentialLocked migrates id between credential lists, appending to
// the new credential's list.
func (m *Manager) moveCredentialLocked(id, from, to string) {
	m.removeFromCredentialLocked(id, from)
	m.byCredential[to] = append(m.byCredential[to], id)
}

// enforceCapLocked applies the FIFO capacity bound for a credential and
// returns the number of conversations evicted. Evicted conversations lose
// their reverse-hash entries too.
func (m *Manager) enforceCapLocked(credential string) int {
	ids := m.byCredential[credential]
	if len(ids) <= m.maxPerCredential {
		return 0
	}

	overflow := len(ids) - m.maxPerCredential
	for _, id := range ids[:overflow] {
		ctx, ok := m.conversations[id]
		if !ok {
			continue
		}
		delete(m.conversations, id)
		if ctx.HistoryHash != "" {
			if owner, ok := m.hashIndex[ctx.HistoryHash]; ok && owner == id {
				delete(m.hashIndex, ctx.HistoryHash)
			}
		}
		m.logger.Info("evicted oldest conversation", "conversation_id", id, "cap", m.maxPerCredential)
	}
	m.byCredential[credential] = ids[overflow:]
	return overflow
}

func (m *Manager) updateActiveLocked() {
	if m.metrics != nil {
		m.metrics.SetActive(len(m.conversations))
	}
}

func (m *Manager) recordHit() {
	if m.metrics != nil {
		m.metrics.RecordHit()
	}
}

func (m *Manager) recordMiss() {
	if m.metrics != nil {
		m.metrics.RecordMiss()
	}
}

// load restores persisted state and rebuilds the reverse index.
func (m *Manager) load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	var state persistedState
	found, err := m.store.Load(ctx, storageKey, &state)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range state.Conversations {
		if c == nil {
			continue
		}
		m.conversations[id] = c
		if c.HistoryHash != "" {
			m.hashIndex[c.HistoryHash] = id
		}
	}
	if state.CredentialConversations != nil {
		m.byCredential = state.CredentialConversations
	}
	m.updateActiveLocked()
	return nil
}

// scheduleSave requests an asynchronous persistence write. Multiple
// requests coalesce; the mutating caller never waits for the store.
func (m *Manager) scheduleSave() {
	if m.store == nil {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

// runSaver is the single background persistence worker. It exits after a
// final flush when the manager closes.
func (m *Manager) runSaver() {
	defer m.wg.Done()
	for {
		select {
		case <-m.saveCh:
			m.persist()
		case <-m.stopCh:
			m.persist()
			return
		}
	}
}

// persist writes a consistent snapshot of the indices to the blob store.
// Failures are logged; the in-memory state stays authoritative.
func (m *Manager) persist() {
	m.mu.Lock()
	state := persistedState{
		Conversations:           make(map[string]*Context, len(m.conversations)),
		CredentialConversations: make(map[string][]string, len(m.byCredential)),
	}
	for id, c := range m.conversations {
		snapshot := *c
		state.Conversations[id] = &snapshot
	}
	for cred, ids := range m.byCredential {
		state.CredentialConversations[cred] = append([]string(nil), ids...)
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := m.store.Save(ctx, storageKey, state); err != nil {
		m.logger.Error("failed to persist conversations", "error", err)
	}
}

// newConversationID allocates a fresh client-facing conversation id.
func newConversationID() string {
	u := uuid.New()
	return "conv-" + hex.EncodeToString(u[:])[:24]
}
