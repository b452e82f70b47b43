// Package pipeline wires a matched alert through deduplication, per-rule
// throttling, LLM enrichment, journaling, desktop notification, and
// dashboard broadcast, in that fixed order.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/events"
)

// Enricher is the subset of *llm.Enricher the pipeline needs.
type Enricher interface {
	Enrich(ctx context.Context, alert events.Alert) (string, bool)
}

// Journal is the subset of *journal.Store the pipeline needs.
type Journal interface {
	Append(ctx context.Context, alert events.Alert) error
}

// Notifier is the subset of *notify.Notifier the pipeline needs.
type Notifier interface {
	Notify(ctx context.Context, alert events.Alert)
}

// Broadcaster is the narrow dashboard interface the pipeline depends on,
// breaking the engine/dashboard cyclic reference: pipeline never imports
// the dashboard package directly.
type Broadcaster interface {
	BroadcastAlert(alert events.Alert)
}

// Config configures dedup/throttle windows.
type Config struct {
	DedupWindow     time.Duration
	ThrottlePerRule time.Duration
	ToastEnabled    bool
}

// Pipeline processes matched alerts through the fixed six-step flow:
// dedup, throttle, enrich, journal, toast, broadcast.
type Pipeline struct {
	cfg       Config
	enricher  Enricher
	journal   Journal
	notifier  Notifier
	dashboard Broadcaster

	mu          sync.Mutex
	lastSeen    map[string]time.Time // fingerprint -> last time this exact alert fired
	lastEmitted map[string]time.Time // rule id -> last time this rule fired at all
}

// New creates a Pipeline. dashboard, notifier, and enricher may each be nil
// to disable that step (e.g. no LLM configured).
func New(cfg Config, enricher Enricher, journal Journal, notifier Notifier, dashboard Broadcaster) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		enricher:    enricher,
		journal:     journal,
		notifier:    notifier,
		dashboard:   dashboard,
		lastSeen:    make(map[string]time.Time),
		lastEmitted: make(map[string]time.Time),
	}
}

// Process runs alert through the pipeline. It returns false if the alert
// was dropped by dedup or throttle, true once it passed both and reached the
// journal step (journal, enrichment, toast, and broadcast failures never
// cause a drop).
func (p *Pipeline) Process(ctx context.Context, alert events.Alert) bool {
	if p.isDuplicate(alert) {
		return false
	}
	if p.isThrottled(alert) {
		return false
	}

	if p.enricher != nil {
		if explanation, ok := p.enricher.Enrich(ctx, alert); ok {
			alert.LLMExplanation = &explanation
		}
	}

	if p.journal != nil {
		if err := p.journal.Append(ctx, alert); err != nil {
			slog.Error("pipeline: journal append failed", "alert_id", alert.AlertID, "err", err)
		}
	}

	if p.cfg.ToastEnabled && p.notifier != nil {
		p.notifier.Notify(ctx, alert)
	}

	if p.dashboard != nil {
		p.dashboard.BroadcastAlert(alert)
	}

	return true
}

// isDuplicate reports whether an identical alert (same fingerprint) was
// seen within the dedup window, recording this occurrence either way.
func (p *Pipeline) isDuplicate(alert events.Alert) bool {
	if p.cfg.DedupWindow <= 0 {
		return false
	}

	fp := alert.Fingerprint()
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastSeen[fp]; ok && now.Sub(last) < p.cfg.DedupWindow {
		p.lastSeen[fp] = now
		return true
	}
	p.lastSeen[fp] = now
	return false
}

// isThrottled reports whether any alert from this rule fired within the
// per-rule throttle window, recording this occurrence when it did not.
func (p *Pipeline) isThrottled(alert events.Alert) bool {
	if p.cfg.ThrottlePerRule <= 0 {
		return false
	}

	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.lastEmitted[alert.RuleID]; ok && now.Sub(last) < p.cfg.ThrottlePerRule {
		return true
	}
	p.lastEmitted[alert.RuleID] = now
	return false
}
