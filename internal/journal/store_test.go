package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vigil/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "journal_test")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := Open(Config{DBPath: filepath.Join(dir, "journal.db"), LogPath: filepath.Join(dir, "alerts.jsonl")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndQuery(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	event := events.New("eventlog", "failed_login", map[string]any{"attempts": 5})
	alert := events.NewAlert("rule-1", events.SeverityHigh, "title", "desc", event)

	if err := store.Append(ctx, alert); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Query(ctx, QueryOptions{RuleID: "rule-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(got))
	}
	if got[0].AlertID != alert.AlertID {
		t.Fatalf("expected alert_id %q, got %q", alert.AlertID, got[0].AlertID)
	}
}

func TestAppendBuildsHashChain(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		event := events.New("eventlog", "failed_login", map[string]any{"i": i})
		alert := events.NewAlert("rule-1", events.SeverityLow, "t", "d", event)
		if err := store.Append(ctx, alert); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	ok, brokenAt, err := store.VerifyIntegrity(ctx)
	if err != nil {
		t.Fatalf("verify integrity: %v", err)
	}
	if !ok {
		t.Fatalf("expected valid chain, broke at %d", brokenAt)
	}
}

func TestAppendWritesJSONLLine(t *testing.T) {
	dir, err := os.MkdirTemp("", "journal_test")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	logPath := filepath.Join(dir, "alerts.jsonl")
	store, err := Open(Config{DBPath: filepath.Join(dir, "journal.db"), LogPath: logPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	event := events.New("eventlog", "failed_login", map[string]any{"attempts": 5})
	alert := events.NewAlert("rule-1", events.SeverityHigh, "title", "desc", event)
	if err := store.Append(ctx, alert); err != nil {
		t.Fatalf("append: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read journal log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 journaled line, got %d", len(lines))
	}
	var got events.Alert
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal journaled line: %v", err)
	}
	if got.AlertID != alert.AlertID {
		t.Fatalf("expected alert_id %q, got %q", alert.AlertID, got.AlertID)
	}
}

func TestQueryFiltersBySeverity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	low := events.NewAlert("rule-1", events.SeverityLow, "t", "d", events.New("s", "t", map[string]any{"a": 1}))
	high := events.NewAlert("rule-2", events.SeverityHigh, "t", "d", events.New("s", "t", map[string]any{"a": 2}))

	if err := store.Append(ctx, low); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, high); err != nil {
		t.Fatal(err)
	}

	got, err := store.Query(ctx, QueryOptions{Severity: "HIGH"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].RuleID != "rule-2" {
		t.Fatalf("expected only the HIGH severity alert, got %+v", got)
	}
}
