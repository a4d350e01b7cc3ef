package credential

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCredentialFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "credentials.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write credential file: %v", err)
	}
	return path
}

func loadedPool(t *testing.T, content string) *Pool {
	t.Helper()
	p := NewPool(nil)
	if err := p.LoadFile(writeCredentialFile(t, content)); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	return p
}

const threeActive = `{
	"basic": [
		{"token": "tok-a", "status": "active", "quota": 10},
		{"token": "tok-b", "status": "active", "quota": 5}
	],
	"super": [
		{"token": "tok-c", "status": "active", "quota": 1}
	]
}`

func TestLoadFile(t *testing.T) {
	p := loadedPool(t, threeActive)

	infos := p.List()
	if len(infos) != 3 {
		t.Fatalf("List() length = %d, want 3", len(infos))
	}
	// Pools in sorted name order, file order within each pool.
	if infos[0].Pool != "basic" || infos[0].TokenMasked != "tok-a" {
		t.Errorf("List()[0] = %+v", infos[0])
	}
	if infos[2].Pool != "super" {
		t.Errorf("List()[2].Pool = %q, want super", infos[2].Pool)
	}
}

func TestLoadFileDefaultsStatus(t *testing.T) {
	p := loadedPool(t, `{"basic": [{"token": "tok-x", "quota": 3}]}`)

	got, err := p.Select(nil)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got != "tok-x" {
		t.Errorf("Select() = %q, want tok-x", got)
	}
}

func TestLoadFileErrors(t *testing.T) {
	p := NewPool(nil)

	if err := p.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile(missing) error = nil")
	}
	if err := p.LoadFile(writeCredentialFile(t, "{broken")); err == nil {
		t.Error("LoadFile(malformed) error = nil")
	}
}

func TestSelect(t *testing.T) {
	p := loadedPool(t, threeActive)

	// Selection always lands in the active set.
	valid := map[string]bool{"tok-a": true, "tok-b": true, "tok-c": true}
	for i := 0; i < 20; i++ {
		got, err := p.Select(nil)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if !valid[got] {
			t.Fatalf("Select() = %q, not in active set", got)
		}
	}
}

func TestSelectExclusion(t *testing.T) {
	p := loadedPool(t, threeActive)

	exclude := map[string]struct{}{"tok-a": {}, "tok-b": {}}
	for i := 0; i < 10; i++ {
		got, err := p.Select(exclude)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if got != "tok-c" {
			t.Fatalf("Select() = %q, want tok-c (others excluded)", got)
		}
	}
}

func TestSelectAllExcluded(t *testing.T) {
	p := loadedPool(t, threeActive)

	exclude := map[string]struct{}{"tok-a": {}, "tok-b": {}, "tok-c": {}}
	_, err := p.Select(exclude)
	if err == nil {
		t.Fatal("Select() error = nil, want all-excluded")
	}
	if !errors.Is(err, ErrAllExcluded) {
		t.Errorf("errors.Is(err, ErrAllExcluded) = false, err = %v", err)
	}
	if errors.Is(err, ErrNoCredentials) {
		t.Error("all-excluded must stay distinct from no-credentials")
	}

	var aee *AllExcludedError
	if !errors.As(err, &aee) {
		t.Fatalf("error type = %T, want *AllExcludedError", err)
	}
	if aee.Active != 3 || aee.Excluded != 3 {
		t.Errorf("AllExcludedError = %+v, want Active=3 Excluded=3", aee)
	}
}

func TestSelectEmpty(t *testing.T) {
	p := NewPool(nil)
	_, err := p.Select(nil)
	if !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Select() on empty pool error = %v, want ErrNoCredentials", err)
	}
}

func TestRecordFailureTransientKeepsEligibility(t *testing.T) {
	p := loadedPool(t, `{"basic": [{"token": "tok-a", "status": "active", "quota": 10}]}`)

	p.RecordFailure("tok-a", "timeout", true)

	// Transient failure: still selectable.
	got, err := p.Select(nil)
	if err != nil {
		t.Fatalf("Select() after transient failure error = %v", err)
	}
	if got != "tok-a" {
		t.Errorf("Select() = %q, want tok-a", got)
	}

	// And it self-heals on success.
	p.RecordSuccess("tok-a")
	infos := p.List()
	if infos[0].Status != StatusActive {
		t.Errorf("Status after success = %q, want active", infos[0].Status)
	}
}

func TestRecordFailureQuotaExhausted(t *testing.T) {
	p := loadedPool(t, `{"basic": [{"token": "tok-a", "status": "active", "quota": 10}]}`)

	p.RecordFailure("tok-a", "quota", false)

	if _, err := p.Select(nil); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Select() after exhaustion error = %v, want ErrNoCredentials", err)
	}
	if got := p.List()[0].Status; got != StatusExhausted {
		t.Errorf("Status = %q, want exhausted", got)
	}
}

func TestRecordFailureInvalid(t *testing.T) {
	p := loadedPool(t, `{"basic": [{"token": "tok-a", "status": "active", "quota": 10}]}`)

	p.RecordFailure("tok-a", "invalid", true)

	if _, err := p.Select(nil); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Select() after invalidation error = %v, want ErrNoCredentials", err)
	}
}

func TestRecordUnknownCredential(t *testing.T) {
	p := NewPool(nil)
	// Neither call may panic or create records.
	p.RecordSuccess("tok-ghost")
	p.RecordFailure("tok-ghost", "timeout", true)
	if got := len(p.List()); got != 0 {
		t.Errorf("List() length = %d after recording unknown credential, want 0", got)
	}
}

func TestMarkCleared(t *testing.T) {
	p := loadedPool(t, `{"basic": [{"token": "tok-a", "status": "active", "quota": 1}]}`)
	fixed := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	p.MarkCleared("tok-a")

	if got := p.List()[0].LastClearedAt; !got.Equal(fixed) {
		t.Errorf("LastClearedAt = %v, want %v", got, fixed)
	}
}

func TestReloadPreservesRuntimeState(t *testing.T) {
	path := writeCredentialFile(t, `{"basic": [{"token": "tok-a", "status": "active", "quota": 10}]}`)
	p := NewPool(nil)
	if err := p.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	p.MarkCleared("tok-a")
	cleared := p.List()[0].LastClearedAt
	if cleared.IsZero() {
		t.Fatal("MarkCleared() did not stamp")
	}

	// Rewrite the file (same token, fresh quota) and reload.
	if err := os.WriteFile(path, []byte(`{"basic": [{"token": "tok-a", "status": "active", "quota": 99}]}`), 0o600); err != nil {
		t.Fatalf("rewrite error = %v", err)
	}
	if err := p.LoadFile(path); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	info := p.List()[0]
	if info.Quota != 99 {
		t.Errorf("Quota after reload = %d, want 99", info.Quota)
	}
	if !info.LastClearedAt.Equal(cleared) {
		t.Errorf("LastClearedAt lost across reload: %v, want %v", info.LastClearedAt, cleared)
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{
			name:  "long token elided",
			token: "aaaaaaaabbbbbbbbccccccccdddddddd",
			want:  "aaaaaaaa...ccccccccdddddddd",
		},
		{
			name:  "short token unchanged",
			token: "short",
			want:  "short",
		},
		{
			name:  "boundary length unchanged",
			token: "123456789012345678901234",
			want:  "123456789012345678901234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mask(tt.token); got != tt.want {
				t.Errorf("Mask(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}
