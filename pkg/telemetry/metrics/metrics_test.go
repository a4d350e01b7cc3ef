package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	cfg := &config.MetricsConfig{Enabled: true, Namespace: "grok2aoi"}
	return NewCollector(cfg, prometheus.NewRegistry())
}

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Result().Body)
	if err != nil {
		t.Fatalf("failed to read metrics body: %v", err)
	}
	return string(body)
}

func TestCollectorRegistersFamilies(t *testing.T) {
	c := newTestCollector(t)

	c.Requests().Record("grok-3", "success", 1200*time.Millisecond)
	c.Conversations().RecordHit()
	c.Conversations().RecordMiss()
	c.Conversations().SetActive(7)
	c.Conversations().RecordRemoved("expired", 3)
	c.Credentials().RecordSelection("ok")
	c.Credentials().RecordFailure("quota_exhausted")
	c.Credentials().SetActive("basic", 4)

	body := scrape(t, c)

	wantSeries := []string{
		`grok2aoi_requests_total{model="grok-3",status="success"} 1`,
		`grok2aoi_conversation_lookups_total{result="hit"} 1`,
		`grok2aoi_conversation_lookups_total{result="miss"} 1`,
		`grok2aoi_conversations_active 7`,
		`grok2aoi_conversations_removed_total{cause="expired"} 3`,
		`grok2aoi_credential_selections_total{outcome="ok"} 1`,
		`grok2aoi_credential_failures_total{reason="quota_exhausted"} 1`,
		`grok2aoi_credentials_active{pool="basic"} 4`,
	}
	for _, want := range wantSeries {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing series %q", want)
		}
	}
}

func TestConversationRecordRemovedZero(t *testing.T) {
	c := newTestCollector(t)

	// Zero removals must not create a series.
	c.Conversations().RecordRemoved("expired", 0)

	body := scrape(t, c)
	if strings.Contains(body, `conversations_removed_total{cause="expired"}`) {
		t.Error("RecordRemoved(_, 0) created a series, want no-op")
	}
}

func TestNewCollectorNilRegistry(t *testing.T) {
	cfg := &config.MetricsConfig{}
	c := NewCollector(cfg, nil)
	if c.Registry() == nil {
		t.Fatal("NewCollector(nil registry) did not create a registry")
	}
	if cfg.Namespace == "" {
		t.Error("NewCollector did not default the namespace")
	}
}
