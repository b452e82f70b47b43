package samplers

import (
	"context"
	"fmt"
	"strings"

	gopsprocess "github.com/DataDog/gopsutil/process"

	"vigil/internal/events"
)

// suspiciousProcessNames are executables commonly associated with
// post-exploitation and credential-theft tooling.
var suspiciousProcessNames = map[string]struct{}{
	"nc": {}, "ncat": {}, "netcat": {},
	"mimikatz": {}, "psexec": {}, "procdump": {}, "lazagne": {},
	"bloodhound": {}, "sharphound": {}, "rubeus": {}, "certify": {},
	"chisel": {}, "plink": {}, "cobaltstrike": {}, "beacon": {},
	"wce": {}, "pwdump": {}, "fgdump": {}, "keylogger": {},
}

// tempPathIndicators are path fragments that suggest a process is running
// from a temporary or otherwise transient location, a common drop site for
// malware.
var tempPathIndicators = []string{
	"/tmp/",
	"/var/tmp/",
	"/dev/shm/",
}

// ProcessSampler polls the process table and reports suspicious activity:
// known-bad executable names, or execution from a temp-path location.
// Process names in trusted report no event: they are expected background
// activity, not worth alerting on even before rule evaluation.
type ProcessSampler struct {
	baseState
	baseline map[string]struct{} // process names observed at setup
	alerted  map[int32]struct{}
	trusted  map[string]struct{}
}

// NewProcessSampler creates a process-creation sampler.
func NewProcessSampler(trustedProcesses []string) *ProcessSampler {
	trusted := make(map[string]struct{}, len(trustedProcesses))
	for _, name := range trustedProcesses {
		trusted[strings.ToLower(name)] = struct{}{}
	}
	return &ProcessSampler{
		baseState: baseState{name: "process"},
		baseline:  make(map[string]struct{}),
		alerted:   make(map[int32]struct{}),
		trusted:   trusted,
	}
}

func (s *ProcessSampler) Name() string { return s.name }

func (s *ProcessSampler) Setup(ctx context.Context) error {
	pids, err := gopsprocess.PidsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("process sampler: initial listing: %w", err)
	}
	for _, pid := range pids {
		name, _, _ := processDetails(ctx, pid)
		if name != "" {
			s.baseline[strings.ToLower(name)] = struct{}{}
		}
	}
	s.setRunning(true)
	return nil
}

func (s *ProcessSampler) Poll(ctx context.Context) ([]events.Event, error) {
	pids, err := gopsprocess.PidsWithContext(ctx)
	s.recordPoll(err)
	if err != nil {
		return nil, fmt.Errorf("process sampler: %w", err)
	}

	current := make(map[int32]struct{}, len(pids))
	var out []events.Event

	for _, pid := range pids {
		current[pid] = struct{}{}

		if _, alerted := s.alerted[pid]; alerted {
			continue
		}

		name, _, exePath := processDetails(ctx, pid)
		nameLower := strings.ToLower(name)
		if _, ok := s.trusted[nameLower]; ok {
			continue
		}

		if _, suspicious := suspiciousProcessNames[nameLower]; suspicious {
			s.alerted[pid] = struct{}{}
			out = append(out, events.New("process", "suspicious_process", map[string]any{
				"process": name,
				"pid":     pid,
				"reason":  "suspicious_name",
			}))
			continue
		}

		if exePath != "" && isTempPath(exePath) {
			s.alerted[pid] = struct{}{}
			out = append(out, events.New("process", "process_from_temp", map[string]any{
				"process": name,
				"pid":     pid,
				"path":    exePath,
				"reason":  "temp_path",
			}))
		}
	}

	for pid := range s.alerted {
		if _, ok := current[pid]; !ok {
			delete(s.alerted, pid)
		}
	}

	return out, nil
}

func (s *ProcessSampler) State() State { return s.snapshot() }

func (s *ProcessSampler) Stop() { s.setRunning(false) }

// processDetails best-effort resolves a process's name, owner, and
// executable path. A process that exits mid-poll yields empty fields
// rather than an error, since a vanished process is not itself an anomaly.
func processDetails(ctx context.Context, pid int32) (name, username, exePath string) {
	p, err := gopsprocess.NewProcess(pid)
	if err != nil {
		return "", "", ""
	}
	name, _ = p.NameWithContext(ctx)
	username, _ = p.UsernameWithContext(ctx)
	exePath, _ = p.ExeWithContext(ctx)
	return name, username, exePath
}

// isTempPath reports whether path contains any indicator of a temporary or
// transient execution location.
func isTempPath(path string) bool {
	lower := strings.ToLower(path)
	for _, indicator := range tempPathIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
