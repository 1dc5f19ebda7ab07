package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileStore_PutGet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	records := []json.RawMessage{
		json.RawMessage(`{"titleSlug":"two-sum"}`),
		json.RawMessage(`{"titleSlug":"add-two-numbers"}`),
	}
	if err := store.Put(ctx, "problems.json", records); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "problems.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Get() returned %d records, want 2", len(got))
	}

	var first map[string]string
	if err := json.Unmarshal(got[0], &first); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if first["titleSlug"] != "two-sum" {
		t.Errorf("titleSlug = %q, want two-sum", first["titleSlug"])
	}
}

func TestFileStore_Overwrites(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	first := []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`), json.RawMessage(`3`)}
	if err := store.Put(ctx, "a.json", first); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "a.json", nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Artifact = %q, want []", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Directory has %d entries, want 1 (no temp files left)", len(entries))
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	_, err = store.Get(context.Background(), "missing.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFileStore_InvalidNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	for _, name := range []string{"", ".", "..", "../escape.json", "sub/dir.json"} {
		if err := store.Put(context.Background(), name, nil); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

func TestFileStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := store.Put(context.Background(), "x.json", nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if store.Path("x.json") != filepath.Join(dir, "x.json") {
		t.Errorf("Path() = %q", store.Path("x.json"))
	}
	if _, err := os.Stat(store.Path("x.json")); err != nil {
		t.Errorf("Artifact file missing: %v", err)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, "x.json", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
}

func TestFileStore_RoundTripPreservesOrder(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	var records []json.RawMessage
	for i := 0; i < 25; i++ {
		b, _ := json.Marshal(map[string]int{"i": i})
		records = append(records, b)
	}

	if err := store.Put(ctx, "order.json", records); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := store.Get(ctx, "order.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	for i := range records {
		var want, have map[string]int
		json.Unmarshal(records[i], &want)
		json.Unmarshal(got[i], &have)
		if !reflect.DeepEqual(want, have) {
			t.Fatalf("record %d = %v, want %v", i, have, want)
		}
	}
}
