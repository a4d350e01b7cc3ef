// Package stats aggregates request trend counters by hour and by day and
// persists them through the blob store.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Tivon521/grok2aoi/pkg/storage"
)

const (
	storageKey = "request_stats"

	hourKeyLayout = "2006-01-02 15"
	dateKeyLayout = "2006-01-02"

	hourlyRetention = 7 * 24 * time.Hour
	dailyRetention  = 30 * 24 * time.Hour
)

// Bucket holds the counters of one hour or one day.
type Bucket struct {
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Models  map[string]int `json:"models"`
}

// Point is one entry of a trend series. Absent buckets are reported as
// zero points so the series always covers the full requested window.
type Point struct {
	Period  string         `json:"period"`
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Models  map[string]int `json:"models"`
}

// Summary aggregates today's and all-time counters.
type Summary struct {
	Today             Totals         `json:"today"`
	AllTime           Totals         `json:"all_time"`
	ModelDistribution map[string]int `json:"model_distribution"`
}

// Totals is a success/failure breakdown with a derived success rate in
// percent.
type Totals struct {
	Total       int     `json:"total"`
	Success     int     `json:"success"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

type persistedStats struct {
	Hourly map[string]*Bucket `json:"hourly"`
	Daily  map[string]*Bucket `json:"daily"`
}

// Tracker accumulates request counters in memory and flushes them to the
// blob store when dirty. All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	hourly map[string]*Bucket
	daily  map[string]*Bucket
	dirty  bool

	store         storage.BlobStore
	flushInterval time.Duration
	logger        *slog.Logger

	cron *cron.Cron

	// now is stubbed in tests.
	now func() time.Time
}

// NewTracker creates a tracker backed by the given store. The store may
// be nil, in which case counters live in memory only.
func NewTracker(store storage.BlobStore, flushInterval time.Duration) *Tracker {
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	return &Tracker{
		hourly:        make(map[string]*Bucket),
		daily:         make(map[string]*Bucket),
		store:         store,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "stats"),
		now:           time.Now,
	}
}

// Start loads persisted counters, prunes expired buckets and begins the
// periodic flush.
func (t *Tracker) Start(ctx context.Context) error {
	if t.store != nil {
		var state persistedStats
		found, err := t.store.Load(ctx, storageKey, &state)
		if err != nil {
			return err
		}
		if found {
			t.mu.Lock()
			if state.Hourly != nil {
				t.hourly = state.Hourly
			}
			if state.Daily != nil {
				t.daily = state.Daily
			}
			t.mu.Unlock()
			t.logger.Info("loaded request statistics",
				"hourly_buckets", len(state.Hourly),
				"daily_buckets", len(state.Daily),
			)
		}
	}

	t.Prune()

	t.cron = cron.New()
	if _, err := t.cron.AddFunc("@every "+t.flushInterval.String(), func() {
		t.Flush(context.Background())
	}); err != nil {
		return err
	}
	t.cron.Start()
	return nil
}

// Close flushes pending counters and stops the periodic flush.
func (t *Tracker) Close() error {
	if t.cron != nil {
		<-t.cron.Stop().Done()
	}
	return t.Flush(context.Background())
}

// Record counts one request against the current hour and day buckets.
func (t *Tracker) Record(model string, success bool) {
	now := t.now()
	hourKey := now.Format(hourKeyLayout)
	dateKey := now.Format(dateKeyLayout)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.bump(t.hourly, hourKey, model, success)
	t.bump(t.daily, dateKey, model, success)
	t.dirty = true
}

func (t *Tracker) bump(buckets map[string]*Bucket, key, model string, success bool) {
	b, ok := buckets[key]
	if !ok {
		b = &Bucket{Models: make(map[string]int)}
		buckets[key] = b
	}
	b.Total++
	if success {
		b.Success++
	} else {
		b.Failed++
	}
	b.Models[model]++
}

// Flush persists the counters when they changed since the last flush.
func (t *Tracker) Flush(ctx context.Context) error {
	if t.store == nil {
		return nil
	}

	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return nil
	}
	state := persistedStats{
		Hourly: make(map[string]*Bucket, len(t.hourly)),
		Daily:  make(map[string]*Bucket, len(t.daily)),
	}
	for k, b := range t.hourly {
		state.Hourly[k] = b.clone()
	}
	for k, b := range t.daily {
		state.Daily[k] = b.clone()
	}
	t.dirty = false
	t.mu.Unlock()

	if err := t.store.Save(ctx, storageKey, state); err != nil {
		t.mu.Lock()
		t.dirty = true
		t.mu.Unlock()
		t.logger.Error("failed to persist request statistics", "error", err)
		return err
	}
	return nil
}

func (b *Bucket) clone() *Bucket {
	out := &Bucket{
		Total:   b.Total,
		Success: b.Success,
		Failed:  b.Failed,
		Models:  make(map[string]int, len(b.Models)),
	}
	for m, n := range b.Models {
		out.Models[m] = n
	}
	return out
}

// Prune drops hourly buckets older than seven days and daily buckets
// older than thirty days.
func (t *Tracker) Prune() {
	now := t.now()
	hourCutoff := now.Add(-hourlyRetention).Format(hourKeyLayout)
	dateCutoff := now.Add(-dailyRetention).Format(dateKeyLayout)

	t.mu.Lock()
	defer t.mu.Unlock()

	prunedHours, prunedDays := 0, 0
	for k := range t.hourly {
		if k < hourCutoff {
			delete(t.hourly, k)
			prunedHours++
		}
	}
	for k := range t.daily {
		if k < dateCutoff {
			delete(t.daily, k)
			prunedDays++
		}
	}
	if prunedHours > 0 || prunedDays > 0 {
		t.dirty = true
		t.logger.Info("pruned request statistics", "hourly", prunedHours, "daily", prunedDays)
	}
}

// Hourly returns the trend of the last n hours, oldest first, with zero
// points for hours that saw no traffic.
func (t *Tracker) Hourly(n int) []Point {
	return t.series(t.hourly, n, time.Hour, hourKeyLayout)
}

// Daily returns the trend of the last n days, oldest first.
func (t *Tracker) Daily(n int) []Point {
	return t.series(t.daily, n, 24*time.Hour, dateKeyLayout)
}

func (t *Tracker) series(buckets map[string]*Bucket, n int, step time.Duration, layout string) []Point {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Point, 0, n)
	for i := n - 1; i >= 0; i-- {
		key := now.Add(-time.Duration(i) * step).Format(layout)
		p := Point{Period: key, Models: map[string]int{}}
		if b, ok := buckets[key]; ok {
			p.Total = b.Total
			p.Success = b.Success
			p.Failed = b.Failed
			for m, c := range b.Models {
				p.Models[m] = c
			}
		}
		out = append(out, p)
	}
	return out
}

// Summary returns today's counters, the all-time aggregate over retained
// daily buckets and the per-model distribution.
func (t *Tracker) Summary() Summary {
	today := t.now().Format(dateKeyLayout)

	t.mu.Lock()
	defer t.mu.Unlock()

	var s Summary
	s.ModelDistribution = make(map[string]int)
	for key, b := range t.daily {
		s.AllTime.Total += b.Total
		s.AllTime.Success += b.Success
		s.AllTime.Failed += b.Failed
		for m, c := range b.Models {
			s.ModelDistribution[m] += c
		}
		if key == today {
			s.Today = Totals{Total: b.Total, Success: b.Success, Failed: b.Failed}
		}
	}
	s.Today.SuccessRate = successRate(s.Today.Success, s.Today.Total)
	s.AllTime.SuccessRate = successRate(s.AllTime.Success, s.AllTime.Total)
	return s
}

func successRate(success, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(success)/float64(total)*1000+0.5)) / 10
}
