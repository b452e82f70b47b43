package events

import "testing"

func TestNewEventIDFormat(t *testing.T) {
	e := New("network", "new_listening_socket", map[string]any{"port": 22})
	if len(e.EventID) != 12 {
		t.Fatalf("expected 12-char event id, got %q (%d chars)", e.EventID, len(e.EventID))
	}
	for _, r := range e.EventID {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			t.Fatalf("event id %q contains non-hex character %q", e.EventID, r)
		}
	}
}

func TestEventFieldMissingDataMap(t *testing.T) {
	e := Event{Source: "x", EventType: "y"}
	if _, ok := e.Field("anything"); ok {
		t.Fatal("expected Field to report absent on nil Data map")
	}
}

func TestEventFieldPresent(t *testing.T) {
	e := New("process", "process_started", map[string]any{"pid": 123})
	v, ok := e.Field("pid")
	if !ok {
		t.Fatal("expected pid field to be present")
	}
	if v != 123 {
		t.Fatalf("expected 123, got %v", v)
	}
}

func TestTwoEventsGetDistinctIDs(t *testing.T) {
	a := New("s", "t", nil)
	b := New("s", "t", nil)
	if a.EventID == b.EventID {
		t.Fatal("expected distinct event ids")
	}
}
