package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "existing.yml", "ignored.txt")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		Match:       func(p string) bool { return strings.HasSuffix(p, ".yml") },
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
	}, discardLogger())
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	waitFor := func(name string) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case p := <-events:
				if filepath.Base(p) == name {
					return
				}
			case <-deadline:
				t.Fatalf("no event for %s", name)
			}
		}
	}

	waitFor("existing.yml")

	if err := os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "new.yml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor("new.yml")

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed after cancel")
		}
	}
}

func TestStartWatcherNoRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}, nil); err == nil {
		t.Error("expected error without roots")
	}
}
