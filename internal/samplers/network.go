package samplers

import (
	"context"
	"fmt"
	"strings"
	"syscall"

	gnet "github.com/DataDog/gopsutil/net"

	"vigil/internal/events"
)

// ephemeralPortStart is the first port in the OS-assigned dynamic range.
// Listeners in this range are short-lived and reassigned by the kernel,
// not real services worth alerting on.
const ephemeralPortStart = 49152

// NetworkSampler polls the kernel's connection table and reports sockets in
// LISTEN state (TCP) or bound (UDP) that were not present on the previous
// poll, absorbing ephemeral and explicitly ignored ports into the baseline
// without emitting an event for them.
type NetworkSampler struct {
	baseState
	known        map[string]struct{}
	trusted      map[string]struct{}
	ignoredPorts map[int]struct{}
}

// NewNetworkSampler creates a listening-socket sampler. trustedProcesses is
// matched case-insensitively against the resolved process name; ignoredPorts
// are absorbed into the baseline silently, same as ephemeral ports.
func NewNetworkSampler(trustedProcesses []string, ignoredPorts []int) *NetworkSampler {
	trusted := make(map[string]struct{}, len(trustedProcesses))
	for _, name := range trustedProcesses {
		trusted[strings.ToLower(name)] = struct{}{}
	}
	ignored := make(map[int]struct{}, len(ignoredPorts))
	for _, port := range ignoredPorts {
		ignored[port] = struct{}{}
	}
	return &NetworkSampler{
		baseState:    baseState{name: "network"},
		known:        make(map[string]struct{}),
		trusted:      trusted,
		ignoredPorts: ignored,
	}
}

func (s *NetworkSampler) Name() string { return s.name }

func (s *NetworkSampler) Setup(ctx context.Context) error {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	if err != nil {
		return fmt.Errorf("network sampler: initial listing: %w", err)
	}
	for _, c := range conns {
		if !isListener(c) {
			continue
		}
		s.known[listenKey(c)] = struct{}{}
	}
	s.setRunning(true)
	return nil
}

func (s *NetworkSampler) Poll(ctx context.Context) ([]events.Event, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "inet")
	s.recordPoll(err)
	if err != nil {
		return nil, fmt.Errorf("network sampler: %w", err)
	}

	seen := make(map[string]struct{}, len(conns))
	var out []events.Event

	for _, c := range conns {
		if !isListener(c) {
			continue
		}
		key := listenKey(c)
		seen[key] = struct{}{}
		if _, known := s.known[key]; known {
			continue
		}

		port := int(c.Laddr.Port)
		if _, ignored := s.ignoredPorts[port]; ignored {
			continue
		}
		if port >= ephemeralPortStart {
			continue
		}

		name, _, _ := processDetails(ctx, int32(c.Pid))
		_, trusted := s.trusted[strings.ToLower(name)]

		out = append(out, events.New("network", "new_listener", map[string]any{
			"proto":      protoName(c),
			"local_addr": c.Laddr.IP,
			"local_port": port,
			"pid":        c.Pid,
			"process":    name,
			"trusted":    trusted,
		}))
	}

	s.known = seen
	return out, nil
}

func (s *NetworkSampler) State() State { return s.snapshot() }

func (s *NetworkSampler) Stop() { s.setRunning(false) }

func listenKey(c gnet.ConnectionStat) string {
	return fmt.Sprintf("%s:%s:%d/%d", protoName(c), c.Laddr.IP, c.Laddr.Port, c.Pid)
}

// isListener reports whether c represents a socket a new_listener event
// should ever consider: a TCP socket in LISTEN state, or any UDP socket
// (UDP has no formal listening state).
func isListener(c gnet.ConnectionStat) bool {
	switch c.Type {
	case syscall.SOCK_STREAM:
		return c.Status == "LISTEN"
	case syscall.SOCK_DGRAM:
		return true
	default:
		return false
	}
}

func protoName(c gnet.ConnectionStat) string {
	switch c.Type {
	case syscall.SOCK_STREAM:
		return "tcp"
	case syscall.SOCK_DGRAM:
		return "udp"
	default:
		return "unknown"
	}
}

