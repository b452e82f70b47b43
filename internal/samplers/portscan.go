package samplers

import (
	"context"
	"fmt"
	"time"

	gnet "github.com/DataDog/gopsutil/net"

	"vigil/internal/events"
)

// defaultPortScanThreshold is the number of distinct local ports a single
// remote address must exceed within a window before it is reported as
// scanning.
const defaultPortScanThreshold = 10

// defaultPortScanWindow is how long a remote address's touched-port set is
// remembered before it resets.
const defaultPortScanWindow = 120 * time.Second

// loopbackRemotes are excluded from scan tracking: local-to-local traffic
// routinely touches many ports and is never a scan.
var loopbackRemotes = map[string]struct{}{
	"127.0.0.1": {},
	"::1":       {},
	"0.0.0.0":   {},
}

// PortScanSampler polls established/incoming connections and flags remote
// addresses that touch an unusually wide spread of local ports in a short
// window, a signature of sequential port scanning.
type PortScanSampler struct {
	baseState
	threshold int
	window    time.Duration

	firstSeen map[string]time.Time
	ports     map[string]map[uint32]struct{}
	reported  map[string]struct{}
}

// NewPortScanSampler creates a port-scan detector. threshold and window
// override the spec defaults (10 distinct ports / 120s) when positive.
func NewPortScanSampler(threshold int, window time.Duration) *PortScanSampler {
	if threshold <= 0 {
		threshold = defaultPortScanThreshold
	}
	if window <= 0 {
		window = defaultPortScanWindow
	}
	return &PortScanSampler{
		baseState: baseState{name: "portscan"},
		threshold: threshold,
		window:    window,
		firstSeen: make(map[string]time.Time),
		ports:     make(map[string]map[uint32]struct{}),
		reported:  make(map[string]struct{}),
	}
}

func (s *PortScanSampler) Name() string { return s.name }

func (s *PortScanSampler) Setup(ctx context.Context) error {
	s.setRunning(true)
	return nil
}

func (s *PortScanSampler) Poll(ctx context.Context) ([]events.Event, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	s.recordPoll(err)
	if err != nil {
		return nil, fmt.Errorf("portscan sampler: %w", err)
	}

	now := time.Now()
	var out []events.Event

	for _, c := range conns {
		if c.Status != "ESTABLISHED" {
			continue
		}
		remote := c.Raddr.IP
		if _, loopback := loopbackRemotes[remote]; remote == "" || loopback {
			continue
		}

		first, ok := s.firstSeen[remote]
		if !ok || now.Sub(first) > s.window {
			s.firstSeen[remote] = now
			s.ports[remote] = make(map[uint32]struct{})
			delete(s.reported, remote)
		}
		s.ports[remote][c.Laddr.Port] = struct{}{}

		if _, already := s.reported[remote]; already {
			continue
		}
		if len(s.ports[remote]) > s.threshold {
			s.reported[remote] = struct{}{}
			out = append(out, events.New("portscan", "port_scan_detected", map[string]any{
				"remote_ip":      remote,
				"unique_ports":   len(s.ports[remote]),
				"window_seconds": int(s.window.Seconds()),
			}))
		}
	}

	return out, nil
}

func (s *PortScanSampler) State() State { return s.snapshot() }

func (s *PortScanSampler) Stop() { s.setRunning(false) }
