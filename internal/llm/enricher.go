package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"vigil/internal/events"
	"vigil/internal/ttlcache"
)

// Generator is the subset of Client the enricher needs; satisfied by
// *Client, and by test doubles.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, bool)
	Availability() Availability
}

// Enricher decides whether an alert is worth sending to the LLM client and,
// if so, caches the resulting explanation by alert fingerprint.
type Enricher struct {
	client      Generator
	cache       *ttlcache.Cache[string]
	minSeverity events.Severity
}

// NewEnricher creates an Enricher gated at minSeverity, caching answers in
// cache (keyed by alert fingerprint).
func NewEnricher(client Generator, cache *ttlcache.Cache[string], minSeverity events.Severity) *Enricher {
	return &Enricher{client: client, cache: cache, minSeverity: minSeverity}
}

// Enrich returns an explanation for alert, or ("", false) if enrichment was
// skipped or failed. It never returns an error: enrichment failure must
// never drop the alert from the pipeline.
func (e *Enricher) Enrich(ctx context.Context, alert events.Alert) (string, bool) {
	if alert.Severity < e.minSeverity {
		return "", false
	}
	if e.client.Availability() == AvailabilityUnavailable {
		return "", false
	}

	fingerprint := alert.Fingerprint()
	if cached, ok := e.cache.Get(fingerprint); ok {
		return cached, true
	}

	prompt := BuildPrompt(alert)
	answer, ok := e.client.Generate(ctx, prompt)
	if !ok {
		return "", false
	}

	e.cache.Set(fingerprint, answer)
	return answer, true
}

// BuildPrompt renders the fixed Spanish-language enrichment prompt,
// embedding the rule id, severity, title, description, and every event
// data key/value pair as a line.
func BuildPrompt(alert events.Alert) string {
	var sb strings.Builder
	sb.WriteString("Eres un analista de seguridad. Explica brevemente la siguiente alerta ")
	sb.WriteString("para un administrador de sistemas, en espanol, en dos o tres frases.\n\n")
	fmt.Fprintf(&sb, "Regla: %s\n", alert.RuleID)
	fmt.Fprintf(&sb, "Severidad: %s\n", alert.Severity)
	fmt.Fprintf(&sb, "Titulo: %s\n", alert.Title)
	fmt.Fprintf(&sb, "Descripcion: %s\n", alert.Description)
	sb.WriteString("Datos del evento:\n")

	keys := make([]string, 0, len(alert.Event.Data))
	for k := range alert.Event.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, alert.Event.Data[k])
	}

	return sb.String()
}

// StartupProbeInterval is how often cmd/vigild's background probe re-checks
// reachability; it probes on every tick, whatever the current availability.
// Exposed for cmd/vigild to wire a ticker without duplicating the constant.
const StartupProbeInterval = 30 * time.Second
