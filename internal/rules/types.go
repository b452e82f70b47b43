// Package rules implements the declarative rule catalog and the engine that
// evaluates events against it to produce alerts.
package rules

import "vigil/internal/events"

// Operator is a condition comparison operator.
type Operator string

const (
	OpEq       Operator = "eq"
	OpNeq      Operator = "neq"
	OpGt       Operator = "gt"
	OpLt       Operator = "lt"
	OpGte      Operator = "gte"
	OpLte      Operator = "lte"
	OpIn       Operator = "in"
	OpContains Operator = "contains"
)

// Condition is a single (field, operator, value) triple evaluated against
// an event's data map.
type Condition struct {
	Field string   `yaml:"field"`
	Op    Operator `yaml:"op"`
	Value any      `yaml:"value"`
}

// Rule is a single entry in the rule catalog.
type Rule struct {
	ID               string          `yaml:"id"`
	Name             string          `yaml:"name"`
	Description      string          `yaml:"description"`
	Severity         events.Severity `yaml:"-"`
	Source           string          `yaml:"source"`
	EventType        string          `yaml:"event_type"`
	Conditions       []Condition     `yaml:"conditions"`
	AlertTitle       string          `yaml:"alert_title"`
	AlertDescription string          `yaml:"alert_description"`
}

// rawRule mirrors Rule but keeps Severity as a raw string so the loader can
// skip a single rule with a bad severity name instead of failing the whole
// file's unmarshal.
type rawRule struct {
	ID               string      `yaml:"id"`
	Name             string      `yaml:"name"`
	Description      string      `yaml:"description"`
	Severity         string      `yaml:"severity"`
	Source           string      `yaml:"source"`
	EventType        string      `yaml:"event_type"`
	Conditions       []Condition `yaml:"conditions"`
	AlertTitle       string      `yaml:"alert_title"`
	AlertDescription string      `yaml:"alert_description"`
}

// CatalogFile is the top-level shape of a rule file.
type CatalogFile struct {
	Rules []rawRule `yaml:"rules"`
}
