package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/railsonsantospb/unifi-relay/core"
)

func newTestStore(t *testing.T) (*StateStore, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewStateStore(Options{Dir: dir})
	if err != nil {
		t.Fatalf("new state store: %v", err)
	}
	return store, dir
}

func TestStateStore_ReadMissingFileIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	snapshot := store.Read(context.Background())
	if snapshot == nil || len(snapshot) != 0 {
		t.Fatalf("expected empty snapshot, got %#v", snapshot)
	}
}

func TestStateStore_ReadCorruptFileIsEmpty(t *testing.T) {
	store, dir := newTestStore(t)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if snapshot := store.Read(context.Background()); len(snapshot) != 0 {
		t.Fatalf("expected corrupt file to read as empty, got %#v", snapshot)
	}

	changed, err := store.CompareAndSwap(context.Background(), "unifi:home", core.StateEntry{Hash: "abc", TS: "t1"})
	if err != nil || !changed {
		t.Fatalf("expected swap over corrupt file to succeed, changed=%v err=%v", changed, err)
	}
}

func TestStateStore_WriteCreatesDirAndPrettyPrints(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.Write(context.Background(), core.StateSnapshot{
		"unifi:home": {Hash: "abc", TS: "2026-10-15T10:00:00Z"},
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"unifi:home\": {\n    \"hash\": \"abc\"") {
		t.Fatalf("expected two-space indented document, got %s", data)
	}

	var decoded map[string]map[string]string
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode written file: %v", err)
	}
	if decoded["unifi:home"]["ts"] != "2026-10-15T10:00:00Z" {
		t.Fatalf("unexpected decoded document: %#v", decoded)
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the state file after write, got %d entries", len(entries))
	}
}

func TestStateStore_CompareAndSwap(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	changed, err := store.CompareAndSwap(ctx, "unifi:home", core.StateEntry{Hash: "abc", TS: "t1"})
	if err != nil || !changed {
		t.Fatalf("expected first swap to change, changed=%v err=%v", changed, err)
	}
	changed, err = store.CompareAndSwap(ctx, "unifi:home", core.StateEntry{Hash: "abc", TS: "t2"})
	if err != nil || changed {
		t.Fatalf("expected same hash to be unchanged, changed=%v err=%v", changed, err)
	}
	entry, ok, _ := store.Load(ctx, "unifi:home")
	if !ok || entry.TS != "t1" {
		t.Fatalf("expected unchanged entry to keep first ts, got %#v", entry)
	}

	changed, err = store.CompareAndSwap(ctx, "unifi:home", core.StateEntry{Hash: "def", TS: "t3"})
	if err != nil || !changed {
		t.Fatalf("expected new hash to change, changed=%v err=%v", changed, err)
	}
}

func TestStateStore_ConcurrentSitesKeepAllUpdates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := core.StateKey(fmt.Sprintf("site-%d", i))
			if _, err := store.CompareAndSwap(ctx, key, core.StateEntry{Hash: "h", TS: "t"}); err != nil {
				t.Errorf("swap %s: %v", key, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(store.Read(ctx)); got != 20 {
		t.Fatalf("expected 20 site entries, got %d", got)
	}
}

func TestStateStore_WriteFailureIsReported(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	store, err := NewStateStore(Options{Dir: filepath.Join(blocker, "data")})
	if err != nil {
		t.Fatalf("new state store: %v", err)
	}
	if _, err := store.CompareAndSwap(context.Background(), "unifi:home", core.StateEntry{Hash: "a"}); err == nil {
		t.Fatalf("expected write under a regular file to fail")
	}
}

func TestNewStateStore_RequiresDir(t *testing.T) {
	if _, err := NewStateStore(Options{}); err == nil {
		t.Fatalf("expected missing dir error")
	}
}
