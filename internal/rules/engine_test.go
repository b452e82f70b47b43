package rules

import (
	"testing"

	"vigil/internal/events"
)

func newCatalog(rules ...Rule) *Catalog {
	return &Catalog{Rules: rules}
}

func TestEvaluateMatchesOnSourceEventTypeAndConditions(t *testing.T) {
	cat := newCatalog(Rule{
		ID:        "r1",
		Severity:  events.SeverityHigh,
		Source:    "eventlog",
		EventType: "failed_login",
		Conditions: []Condition{
			{Field: "attempts", Op: OpGte, Value: 5},
		},
		AlertTitle:       "Brute force from {remote_address}",
		AlertDescription: "{attempts} attempts from {remote_address}",
	})
	eng := NewEngine(cat)

	event := events.New("eventlog", "failed_login", map[string]any{
		"attempts":       7,
		"remote_address": "10.0.0.1",
	})

	alerts := eng.Evaluate(event)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title != "Brute force from 10.0.0.1" {
		t.Fatalf("unexpected title: %q", alerts[0].Title)
	}
	if alerts[0].Description != "7 attempts from 10.0.0.1" {
		t.Fatalf("unexpected description: %q", alerts[0].Description)
	}
}

func TestEvaluateNoMatchOnDifferentSource(t *testing.T) {
	cat := newCatalog(Rule{ID: "r1", Source: "eventlog", EventType: "failed_login"})
	eng := NewEngine(cat)

	event := events.New("network", "failed_login", nil)
	if alerts := eng.Evaluate(event); len(alerts) != 0 {
		t.Fatalf("expected 0 alerts for mismatched source, got %d", len(alerts))
	}
}

func TestEvaluateMissingFieldFailsCondition(t *testing.T) {
	cat := newCatalog(Rule{
		ID:        "r1",
		Source:    "eventlog",
		EventType: "failed_login",
		Conditions: []Condition{
			{Field: "attempts", Op: OpGte, Value: 5},
		},
	})
	eng := NewEngine(cat)

	event := events.New("eventlog", "failed_login", map[string]any{"other": 1})
	if alerts := eng.Evaluate(event); len(alerts) != 0 {
		t.Fatalf("expected 0 alerts when condition field is missing, got %d", len(alerts))
	}
}

func TestEvaluateMissingTemplateFallsBackToGenericText(t *testing.T) {
	cat := newCatalog(Rule{ID: "r1", Name: "No Template Rule", Source: "s", EventType: "t"})
	eng := NewEngine(cat)

	event := events.New("s", "t", nil)
	alerts := eng.Evaluate(event)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Title == "" || alerts[0].Description == "" {
		t.Fatal("expected non-empty fallback title/description")
	}
}

func TestConditionOperators(t *testing.T) {
	event := events.New("s", "t", map[string]any{
		"count": 10,
		"name":  "alice",
		"tags":  []any{"a", "b", "c"},
	})

	cases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"eq match", Condition{Field: "name", Op: OpEq, Value: "alice"}, true},
		{"neq match", Condition{Field: "name", Op: OpNeq, Value: "bob"}, true},
		{"gt true", Condition{Field: "count", Op: OpGt, Value: 5}, true},
		{"gt false", Condition{Field: "count", Op: OpGt, Value: 50}, false},
		{"lt true", Condition{Field: "count", Op: OpLt, Value: 50}, true},
		{"gte equal", Condition{Field: "count", Op: OpGte, Value: 10}, true},
		{"lte equal", Condition{Field: "count", Op: OpLte, Value: 10}, true},
		{"in match", Condition{Field: "name", Op: OpIn, Value: []any{"alice", "carol"}}, true},
		{"in no match", Condition{Field: "name", Op: OpIn, Value: []any{"bob", "carol"}}, false},
		{"contains match", Condition{Field: "name", Op: OpContains, Value: "lic"}, true},
		{"unknown operator is a non-match", Condition{Field: "name", Op: "matches", Value: "a.*"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat := newCatalog(Rule{ID: "r", Source: "s", EventType: "t", Conditions: []Condition{tc.cond}})
			eng := NewEngine(cat)
			got := len(eng.Evaluate(event)) == 1
			if got != tc.want {
				t.Fatalf("condition %+v: got match=%v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}
