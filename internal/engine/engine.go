// Package engine wires samplers, the rule engine, and the alert pipeline
// together: every event a sampler produces is evaluated, and every alert
// a rule fires is run through the pipeline.
package engine

import (
	"context"
	"log/slog"

	"vigil/internal/events"
	"vigil/internal/pipeline"
	"vigil/internal/rules"
	"vigil/internal/samplers"
)

// Dashboard is the narrow interface the engine pushes raw events to; it
// never imports internal/dashboard directly.
type Dashboard interface {
	BroadcastEvent(event events.Event)
}

// Engine is the sink every sampler feeds into.
type Engine struct {
	ctx       context.Context
	rules     *rules.Engine
	pipeline  *pipeline.Pipeline
	dashboard Dashboard
}

// New creates an Engine bound to ctx (used for pipeline enrichment calls),
// the rule engine, the alert pipeline, and an optional dashboard handle.
func New(ctx context.Context, ruleEngine *rules.Engine, pl *pipeline.Pipeline, dashboard Dashboard) *Engine {
	return &Engine{ctx: ctx, rules: ruleEngine, pipeline: pl, dashboard: dashboard}
}

// Ingest implements samplers.Sink: it evaluates event against the rule
// catalog and runs every resulting alert through the pipeline.
func (e *Engine) Ingest(event events.Event) {
	if e.dashboard != nil {
		e.dashboard.BroadcastEvent(event)
	}

	alerts := e.rules.Evaluate(event)
	for _, alert := range alerts {
		if ok := e.pipeline.Process(e.ctx, alert); ok {
			slog.Info("alert emitted", "alert_id", alert.AlertID, "rule_id", alert.RuleID, "severity", alert.Severity)
		}
	}
}

var _ samplers.Sink = (*Engine)(nil)
