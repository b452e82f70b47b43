package samplers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"vigil/internal/events"
)

// defaultAuthLog is the system authentication log polled on Linux hosts.
const defaultAuthLog = "/var/log/auth.log"

// EventLogSampler tails a system log file, reporting new lines since the
// previous poll as events. Lines are not parsed beyond basic classification
// of failed-login attempts; deeper analysis is the rule engine's job.
type EventLogSampler struct {
	baseState
	path   string
	file   *os.File
	reader *bufio.Reader
}

// NewEventLogSampler creates a sampler tailing path, or the platform default
// authentication log if path is empty.
func NewEventLogSampler(path string) *EventLogSampler {
	if path == "" {
		path = defaultAuthLog
	}
	return &EventLogSampler{baseState: baseState{name: "eventlog"}, path: path}
}

func (s *EventLogSampler) Name() string { return s.name }

func (s *EventLogSampler) Setup(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("eventlog sampler: open %s: %w", s.path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("eventlog sampler: seek %s: %w", s.path, err)
	}
	s.file = f
	s.reader = bufio.NewReader(f)
	s.setRunning(true)
	return nil
}

func (s *EventLogSampler) Poll(ctx context.Context) ([]events.Event, error) {
	if s.reader == nil {
		err := fmt.Errorf("eventlog sampler not set up")
		s.recordPoll(err)
		return nil, err
	}

	var out []events.Event
	for {
		line, err := s.reader.ReadString('\n')
		if line != "" {
			out = append(out, classifyLogLine(strings.TrimRight(line, "\n")))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			s.recordPoll(err)
			return out, fmt.Errorf("eventlog sampler: read %s: %w", s.path, err)
		}
	}

	s.recordPoll(nil)
	return out, nil
}

func (s *EventLogSampler) State() State { return s.snapshot() }

func (s *EventLogSampler) Stop() {
	s.setRunning(false)
	if s.file != nil {
		s.file.Close()
	}
}

// classifyLogLine tags a raw auth-log line with a coarse event type so the
// rule engine can match on it without re-parsing the line itself.
func classifyLogLine(line string) events.Event {
	eventType := "log_line"
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "failed password"):
		eventType = "failed_login"
	case strings.Contains(lower, "accepted password"), strings.Contains(lower, "session opened"):
		eventType = "successful_login"
	case strings.Contains(lower, "invalid user"):
		eventType = "invalid_user"
	}
	return events.New("eventlog", eventType, map[string]any{"line": line})
}
