package events

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Alert is a rule-fired notification. LLMExplanation is the only field
// mutated after construction, and only once, during enrichment.
type Alert struct {
	AlertID        string    `json:"alert_id"`
	RuleID         string    `json:"rule_id"`
	Severity       Severity  `json:"severity"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Event          Event     `json:"event"`
	LLMExplanation *string   `json:"llm_explanation,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// NewAlert creates an Alert with a fresh ID and current timestamp.
func NewAlert(ruleID string, severity Severity, title, description string, event Event) Alert {
	return Alert{
		AlertID:     "alt_" + uuid.New().String()[:8],
		RuleID:      ruleID,
		Severity:    severity,
		Title:       title,
		Description: description,
		Event:       event,
		Timestamp:   time.Now(),
	}
}

// Fingerprint computes the dedup key: rule id joined with every sorted
// (key, value) pair from the triggering event's data.
func (a Alert) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(a.RuleID)

	keys := make([]string, 0, len(a.Event.Data))
	for k := range a.Event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString("|")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", a.Event.Data[k]))
	}

	return sb.String()
}
