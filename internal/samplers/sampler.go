// Package samplers implements the pollable data sources the engine drives
// on a per-sampler ticker: network listening sockets, port scans, the
// system event log, process activity, and filesystem changes.
package samplers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil/internal/events"
)

// Sampler is a pollable data source. Setup runs once before the first Poll;
// Poll runs on every tick and returns the events observed since the last
// poll; State reports the sampler's last-known health for dashboard
// snapshots; Stop releases any resources Setup acquired.
type Sampler interface {
	Name() string
	Setup(ctx context.Context) error
	Poll(ctx context.Context) ([]events.Event, error)
	State() State
	Stop()
}

// State is a sampler's last-observed health, surfaced on the dashboard.
type State struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
}

// Sink receives events produced by a running sampler.
type Sink interface {
	Ingest(event events.Event)
}

// Run drives sampler on a ticker of the given interval until ctx is
// cancelled, forwarding every event it produces to sink. Poll errors are
// logged and do not stop the loop; a failing sampler keeps retrying on the
// next tick.
func Run(ctx context.Context, sampler Sampler, interval time.Duration, sink Sink) {
	if err := sampler.Setup(ctx); err != nil {
		slog.Error("sampler setup failed", "sampler", sampler.Name(), "err", err)
		return
	}
	defer sampler.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evts, err := sampler.Poll(ctx)
			if err != nil {
				slog.Warn("sampler poll failed", "sampler", sampler.Name(), "err", err)
				continue
			}
			for _, e := range evts {
				sink.Ingest(e)
			}
		}
	}
}

// baseState is embedded by concrete samplers to implement State(). Poll
// runs on the sampler's own goroutine while State() may be read from the
// dashboard's stats goroutine, so access is mutex-guarded.
type baseState struct {
	mu        sync.Mutex
	name      string
	running   bool
	lastPoll  time.Time
	lastError string
}

func (b *baseState) snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Name:      b.name,
		Running:   b.running,
		LastPoll:  b.lastPoll,
		LastError: b.lastError,
	}
}

func (b *baseState) setRunning(running bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running = running
}

func (b *baseState) recordPoll(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastPoll = time.Now()
	if err != nil {
		b.lastError = err.Error()
		return
	}
	b.lastError = ""
}

// Runner owns a fixed set of samplers and drives each on its own
// goroutine/ticker until its context is cancelled.
type Runner struct {
	entries []runnerEntry
}

type runnerEntry struct {
	sampler  Sampler
	interval time.Duration
}

// NewRunner creates an empty Runner.
func NewRunner() *Runner {
	return &Runner{}
}

// Add registers sampler to run on the given poll interval.
func (r *Runner) Add(sampler Sampler, interval time.Duration) {
	r.entries = append(r.entries, runnerEntry{sampler: sampler, interval: interval})
}

// Start launches one goroutine per registered sampler, forwarding events to
// sink. It returns immediately; the goroutines exit when ctx is cancelled.
func (r *Runner) Start(ctx context.Context, sink Sink) {
	for _, e := range r.entries {
		go Run(ctx, e.sampler, e.interval, sink)
	}
}

// States returns the current health of every registered sampler.
func (r *Runner) States() []State {
	states := make([]State, 0, len(r.entries))
	for _, e := range r.entries {
		states = append(states, e.sampler.State())
	}
	return states
}
