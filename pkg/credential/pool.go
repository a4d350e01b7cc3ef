package credential

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/Tivon521/grok2aoi/pkg/telemetry/metrics"
)

// Pool tracks the credential pools and selects credentials for outbound
// requests.
type Pool struct {
	mu sync.RWMutex

	// pools maps pool name to its records in file order.
	pools map[string][]*Record

	// byToken indexes every record by its raw secret.
	byToken map[string]*Record

	metrics *metrics.CredentialMetrics
	logger  *slog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewPool creates an empty credential pool. Metrics may be nil.
func NewPool(cm *metrics.CredentialMetrics) *Pool {
	return &Pool{
		pools:   make(map[string][]*Record),
		byToken: make(map[string]*Record),
		metrics: cm,
		logger:  slog.Default().With("component", "credential.pool"),
		now:     time.Now,
	}
}

// LoadFile replaces the pool contents with the credential file at path.
// The file maps pool names to record lists. Runtime state (failure counts,
// clear timestamps) for tokens that persist across the reload is carried
// over.
func (p *Pool) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read credential file %q: %w", path, err)
	}

	var pools map[string][]*Record
	if err := json.Unmarshal(data, &pools); err != nil {
		return fmt.Errorf("failed to parse credential file %q: %w", path, err)
	}

	p.mu.Lock()
	old := p.byToken
	p.pools = make(map[string][]*Record, len(pools))
	p.byToken = make(map[string]*Record)
	total := 0
	for name, records := range pools {
		kept := make([]*Record, 0, len(records))
		for _, rec := range records {
			if rec == nil || rec.Token == "" {
				continue
			}
			if rec.Status == "" {
				rec.Status = StatusActive
			}
			if prev, ok := old[rec.Token]; ok {
				rec.FailureCount = prev.FailureCount
				if rec.LastClearedAt.IsZero() {
					rec.LastClearedAt = prev.LastClearedAt
				}
			}
			kept = append(kept, rec)
			p.byToken[rec.Token] = rec
			total++
		}
		p.pools[name] = kept
	}
	p.updateGaugesLocked()
	p.mu.Unlock()

	p.logger.Info("loaded credential pools", "file", path, "pools", len(pools), "credentials", total)
	return nil
}

// Select returns a uniformly random active credential outside the
// exclusion set. It returns ErrNoCredentials when the active set is empty
// and an AllExcludedError when exclusion removes every candidate.
func (p *Pool) Select(exclude map[string]struct{}) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var active, candidates []string
	for _, records := range p.pools {
		for _, rec := range records {
			if !rec.eligible() {
				continue
			}
			active = append(active, rec.Token)
			if _, skip := exclude[rec.Token]; !skip {
				candidates = append(candidates, rec.Token)
			}
		}
	}

	if len(active) == 0 {
		p.recordSelection("empty")
		return "", ErrNoCredentials
	}
	if len(candidates) == 0 {
		p.recordSelection("excluded")
		return "", &AllExcludedError{Active: len(active), Excluded: len(exclude)}
	}

	p.recordSelection("ok")
	return candidates[rand.Intn(len(candidates))], nil
}

// eligible reports whether a record may be selected. Errored credentials
// remain eligible: transient upstream flakiness should not shrink the
// rotation.
func (r *Record) eligible() bool {
	switch r.Status {
	case StatusActive, StatusErrored:
		return r.Quota > 0
	default:
		return false
	}
}

// RecordSuccess marks a successful use of the credential, clearing any
// transient error state.
func (p *Pool) RecordSuccess(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.byToken[token]
	if !ok {
		p.logger.Warn("success recorded for unknown credential", "credential", Mask(token))
		return
	}

	rec.FailureCount = 0
	if rec.Status == StatusErrored {
		rec.Status = StatusActive
	}
	p.updateGaugesLocked()
}

// RecordFailure records a failed use of the credential. Quota exhaustion
// and invalidation remove the credential from the active set; anything
// else is tracked as a transient error.
func (p *Pool) RecordFailure(token, reason string, hasQuota bool) {
	p.mu.Lock()
	rec, ok := p.byToken[token]
	if ok {
		rec.FailureCount++
		switch {
		case !hasQuota:
			rec.Status = StatusExhausted
			rec.Quota = 0
		case reason == "invalid":
			rec.Status = StatusInvalid
		default:
			rec.Status = StatusErrored
		}
		p.updateGaugesLocked()
	}
	p.mu.Unlock()

	if !ok {
		p.logger.Warn("failure recorded for unknown credential", "credential", Mask(token))
		return
	}
	if p.metrics != nil {
		p.metrics.RecordFailure(reason)
	}
	p.logger.Warn("credential failure",
		"credential", Mask(token),
		"reason", reason,
		"has_quota", hasQuota,
	)
}

// MarkCleared stamps the credential's last asset-clear time.
func (p *Pool) MarkCleared(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if rec, ok := p.byToken[token]; ok {
		rec.LastClearedAt = p.now()
	}
}

// List returns the externally visible view of every credential, with
// secrets masked, ordered by pool name and file order within each pool.
func (p *Pool) List() []Info {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.pools))
	for name := range p.pools {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Info
	for _, name := range names {
		for _, rec := range p.pools[name] {
			out = append(out, Info{
				Token:         rec.Token,
				TokenMasked:   Mask(rec.Token),
				Pool:          name,
				Status:        rec.Status,
				Quota:         rec.Quota,
				LastClearedAt: rec.LastClearedAt,
			})
		}
	}
	return out
}

// ActiveTokens returns the raw secrets of every eligible credential.
func (p *Pool) ActiveTokens() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []string
	for _, records := range p.pools {
		for _, rec := range records {
			if rec.eligible() {
				out = append(out, rec.Token)
			}
		}
	}
	return out
}

func (p *Pool) recordSelection(outcome string) {
	if p.metrics != nil {
		p.metrics.RecordSelection(outcome)
	}
}

// updateGaugesLocked refreshes the per-pool active gauges.
func (p *Pool) updateGaugesLocked() {
	if p.metrics == nil {
		return
	}
	for name, records := range p.pools {
		n := 0
		for _, rec := range records {
			if rec.eligible() {
				n++
			}
		}
		p.metrics.SetActive(name, n)
	}
}
