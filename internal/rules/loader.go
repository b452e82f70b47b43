package rules

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"vigil/internal/events"
)

// Catalog holds the rules loaded from a rule file, ready for evaluation.
type Catalog struct {
	Rules []Rule
}

// LoadFile loads a rule catalog from a YAML file at path. Invalid entries
// are skipped with a warning; the loader never aborts on a single bad rule.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return Load(data)
}

// Load parses a rule catalog from YAML data.
func Load(data []byte) (*Catalog, error) {
	expanded := os.ExpandEnv(string(data))

	var file CatalogFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("parse rule YAML: %w", err)
	}

	cat := &Catalog{}
	for i, raw := range file.Rules {
		rule, err := convertRule(raw)
		if err != nil {
			slog.Warn("skipping invalid rule", "index", i, "id", raw.ID, "err", err)
			continue
		}
		cat.Rules = append(cat.Rules, rule)
	}

	return cat, nil
}

func convertRule(raw rawRule) (Rule, error) {
	if raw.ID == "" {
		return Rule{}, fmt.Errorf("missing id")
	}
	if raw.Source == "" {
		return Rule{}, fmt.Errorf("rule %q: missing source", raw.ID)
	}
	if raw.EventType == "" {
		return Rule{}, fmt.Errorf("rule %q: missing event_type", raw.ID)
	}
	severity, err := events.ParseSeverity(raw.Severity)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", raw.ID, err)
	}
	for i, c := range raw.Conditions {
		if c.Field == "" {
			return Rule{}, fmt.Errorf("rule %q condition %d: missing field", raw.ID, i)
		}
	}
	// An unknown operator is not rejected here: it is loaded as-is and
	// becomes a non-match at evaluation time, logged once per rule by
	// Engine.conditionMatches.

	return Rule{
		ID:               raw.ID,
		Name:             raw.Name,
		Description:      raw.Description,
		Severity:         severity,
		Source:           raw.Source,
		EventType:        raw.EventType,
		Conditions:       raw.Conditions,
		AlertTitle:       raw.AlertTitle,
		AlertDescription: raw.AlertDescription,
	}, nil
}
