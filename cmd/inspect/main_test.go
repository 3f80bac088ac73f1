package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/buildstreak-agent/internal/state"
)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.db")
	s, err := state.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := state.SaveReplies(context.Background(), s, state.ReplyDedupState{RunCount: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunUsageWithoutDB(t *testing.T) {
	t.Setenv("AGENT_STATE_DB", "")
	if code := run(nil); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestRunListAndDocument(t *testing.T) {
	path := seedDB(t)
	if code := run([]string{"--db", path}); code != 0 {
		t.Fatalf("list mode: exit %d", code)
	}
	if code := run([]string{"--db", path, "--key", state.KeyReplies, "--json"}); code != 0 {
		t.Fatalf("document mode: exit %d", code)
	}
}

func TestRunClosesStoreOnError(t *testing.T) {
	path := seedDB(t)
	if code := run([]string{"--db", path, "--key", "missing"}); code != 1 {
		t.Fatalf("expected exit 1 for unknown document, got %d", code)
	}
	// The last connection to close checkpoints and removes the WAL file.
	if _, err := os.Stat(path + "-wal"); !os.IsNotExist(err) {
		t.Fatalf("expected no WAL file after run returned, stat err=%v", err)
	}
}
