package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

type testDoc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Tags  map[string]int `json:"tags"`
}

func openBackend(t *testing.T, backend string) BlobStore {
	t.Helper()
	ext := ".db"
	if backend == "bolt" {
		ext = ".bolt"
	}
	store, err := Open(config.StorageConfig{
		Backend:     backend,
		Path:        filepath.Join(t.TempDir(), "test"+ext),
		BusyTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Open(%s) error = %v", backend, err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBlobStoreRoundTrip(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)
			ctx := context.Background()

			doc := testDoc{Name: "conversations", Count: 3, Tags: map[string]int{"a": 1}}
			if err := store.Save(ctx, "conversations", doc); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			var got testDoc
			found, err := store.Load(ctx, "conversations", &got)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if !found {
				t.Fatal("Load() found = false, want true")
			}
			if got.Name != doc.Name || got.Count != doc.Count || got.Tags["a"] != 1 {
				t.Errorf("Load() = %+v, want %+v", got, doc)
			}
		})
	}
}

func TestBlobStoreAbsentKey(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)

			var got testDoc
			got.Name = "untouched"
			found, err := store.Load(context.Background(), "missing", &got)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if found {
				t.Error("Load() found = true for absent key")
			}
			if got.Name != "untouched" {
				t.Error("Load() mutated destination for absent key")
			}
		})
	}
}

func TestBlobStoreOverwrite(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)
			ctx := context.Background()

			if err := store.Save(ctx, "doc", testDoc{Name: "v1"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := store.Save(ctx, "doc", testDoc{Name: "v2"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			var got testDoc
			if _, err := store.Load(ctx, "doc", &got); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.Name != "v2" {
				t.Errorf("Load() after overwrite = %q, want v2", got.Name)
			}
		})
	}
}

func TestBlobStoreDelete(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			store := openBackend(t, backend)
			ctx := context.Background()

			if err := store.Save(ctx, "doc", testDoc{Name: "v1"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if err := store.Delete(ctx, "doc"); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}

			var got testDoc
			found, err := store.Load(ctx, "doc", &got)
			if err != nil {
				t.Fatalf("Load() after delete error = %v", err)
			}
			if found {
				t.Error("Load() found deleted key")
			}

			// Deleting an absent key is not an error.
			if err := store.Delete(ctx, "doc"); err != nil {
				t.Errorf("Delete() of absent key error = %v", err)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(config.StorageConfig{Backend: "redis", Path: "x"})
	if err == nil {
		t.Fatal("Open(redis) error = nil, want error")
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	cfg := config.StorageConfig{
		Backend:     "sqlite",
		Path:        filepath.Join(t.TempDir(), "persist.db"),
		BusyTimeout: time.Second,
	}
	ctx := context.Background()

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := store.Save(ctx, "doc", testDoc{Name: "durable"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	var got testDoc
	found, err := reopened.Load(ctx, "doc", &got)
	if err != nil || !found {
		t.Fatalf("Load() after reopen = (%v, %v), want (true, nil)", found, err)
	}
	if got.Name != "durable" {
		t.Errorf("Load() after reopen = %q, want durable", got.Name)
	}
}
