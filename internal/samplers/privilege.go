package samplers

import (
	"fmt"
	"os"
)

// defaultAuthLogPath mirrors the path EventLogSampler reads by default; the
// privilege probe checks readability of the same file before any sampler
// starts.
const defaultAuthLogPath = "/var/log/auth.log"

// CheckPrivilege probes whether the process can read the elevated
// event-log channel the event-log sampler depends on. A failure here is
// not fatal: cmd/vigild logs it and keeps starting. The event-log sampler's
// own Setup then fails to open the same file, so that sampler stops without
// polling while the other samplers keep running; there is no separate
// degraded mode.
func CheckPrivilege() error {
	f, err := os.Open(defaultAuthLogPath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", defaultAuthLogPath, err)
	}
	return f.Close()
}
