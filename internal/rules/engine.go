package rules

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"vigil/internal/events"
)

// Engine evaluates events against a rule catalog and produces alerts.
type Engine struct {
	catalog *Catalog

	warnedOnce sync.Map // "rule id|operator" -> struct{}, for once-per-rule-and-operator "unknown operator" logging
}

// NewEngine creates an Engine bound to the given catalog.
func NewEngine(catalog *Catalog) *Engine {
	if catalog == nil {
		catalog = &Catalog{}
	}
	return &Engine{catalog: catalog}
}

// Evaluate returns the list of alerts produced by every rule that matches
// the given event. Conditions are conjunctive; a missing field fails the
// condition (and hence the rule) rather than erroring.
func (e *Engine) Evaluate(event events.Event) []events.Alert {
	var alerts []events.Alert

	for _, rule := range e.catalog.Rules {
		if rule.Source != event.Source {
			continue
		}
		if rule.EventType != event.EventType {
			continue
		}
		if !e.conditionsMatch(rule, event) {
			continue
		}

		title := render(rule.AlertTitle, event.Data)
		if title == "" {
			title = fmt.Sprintf("[%s] %s", rule.ID, rule.Name)
		}
		description := render(rule.AlertDescription, event.Data)
		if description == "" {
			description = fmt.Sprintf("rule %s matched event %s", rule.ID, event.EventID)
		}

		alerts = append(alerts, events.NewAlert(rule.ID, rule.Severity, title, description, event))
	}

	return alerts
}

// conditionsMatch reports whether every condition of rule holds for event.
func (e *Engine) conditionsMatch(rule Rule, event events.Event) bool {
	for _, cond := range rule.Conditions {
		if !e.conditionMatches(rule.ID, cond, event) {
			return false
		}
	}
	return true
}

func (e *Engine) conditionMatches(ruleID string, cond Condition, event events.Event) bool {
	value, ok := event.Field(cond.Field)
	if !ok {
		return false
	}

	switch cond.Op {
	case OpEq:
		return looseEqual(value, cond.Value)
	case OpNeq:
		return !looseEqual(value, cond.Value)
	case OpGt, OpLt, OpGte, OpLte:
		a, aok := toFloat(value)
		b, bok := toFloat(cond.Value)
		if !aok || !bok {
			return false
		}
		switch cond.Op {
		case OpGt:
			return a > b
		case OpLt:
			return a < b
		case OpGte:
			return a >= b
		default:
			return a <= b
		}
	case OpIn:
		return inCollection(value, cond.Value)
	case OpContains:
		return strings.Contains(fmt.Sprintf("%v", value), fmt.Sprintf("%v", cond.Value))
	default:
		if _, logged := e.warnedOnce.LoadOrStore(ruleID+"|"+string(cond.Op), struct{}{}); !logged {
			slog.Warn("unknown rule operator", "rule_id", ruleID, "op", cond.Op)
		}
		return false
	}
}

// looseEqual compares two scalars for equality, normalizing numeric types
// so that e.g. event data decoded from JSON as float64 still compares equal
// to an int rule value.
func looseEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// inCollection reports whether value is an element of collection, which may
// be a slice of any, or a comma-separated string.
func inCollection(value, collection any) bool {
	switch c := collection.(type) {
	case []any:
		for _, item := range c {
			if looseEqual(value, item) {
				return true
			}
		}
		return false
	case string:
		for _, item := range strings.Split(c, ",") {
			if looseEqual(value, strings.TrimSpace(item)) {
				return true
			}
		}
		return false
	default:
		rv := reflect.ValueOf(collection)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if looseEqual(value, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
}

var fieldPattern = regexp.MustCompile(`\{(\w+)\}`)

// render substitutes {field_name} placeholders from data. Missing keys are
// left as an empty string rather than raising.
func render(template string, data map[string]any) string {
	if template == "" {
		return ""
	}
	return fieldPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := data[key]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	})
}
