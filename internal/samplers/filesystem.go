package samplers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"vigil/internal/events"
)

// fsEventBuffer is the capacity of the watcher's Events channel.
const fsEventBuffer = 1024

// FilesystemSampler watches a set of paths and reports writes, creates,
// removes, and renames under them. fsnotify's own goroutine feeds a
// buffered channel; Poll drains it without blocking, so a slow rule
// evaluation downstream never stalls the watcher.
type FilesystemSampler struct {
	baseState
	paths   []string
	watcher *fsnotify.Watcher
}

// NewFilesystemSampler creates a sampler watching the given paths (files or
// directories). Watching a file's parent directory and filtering by name is
// fsnotify's documented way of tolerating the file being replaced rather
// than written in place.
func NewFilesystemSampler(paths []string) *FilesystemSampler {
	return &FilesystemSampler{baseState: baseState{name: "filesystem"}, paths: paths}
}

func (s *FilesystemSampler) Name() string { return s.name }

func (s *FilesystemSampler) Setup(ctx context.Context) error {
	w, err := fsnotify.NewBufferedWatcher(fsEventBuffer)
	if err != nil {
		return fmt.Errorf("filesystem sampler: new watcher: %w", err)
	}
	for _, p := range s.paths {
		target := p
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			target = filepath.Dir(p)
		}
		if err := w.Add(target); err != nil {
			w.Close()
			return fmt.Errorf("filesystem sampler: watch %s: %w", p, err)
		}
	}
	s.watcher = w
	s.setRunning(true)
	return nil
}

// Poll drains every fsnotify event queued since the previous poll. It never
// blocks: once the channel is empty it returns immediately.
func (s *FilesystemSampler) Poll(ctx context.Context) ([]events.Event, error) {
	if s.watcher == nil {
		err := fmt.Errorf("filesystem sampler not set up")
		s.recordPoll(err)
		return nil, err
	}

	var out []events.Event
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				s.recordPoll(nil)
				return out, nil
			}
			if !isWatchedFile(s.paths, ev.Name) {
				continue
			}
			out = append(out, events.New("filesystem", fsEventType(ev.Op), map[string]any{
				"path": ev.Name,
				"op":   ev.Op.String(),
			}))
		case err, ok := <-s.watcher.Errors:
			if ok && err != nil {
				s.recordPoll(err)
				return out, nil
			}
		default:
			s.recordPoll(nil)
			return out, nil
		}
	}
}

func (s *FilesystemSampler) State() State { return s.snapshot() }

func (s *FilesystemSampler) Stop() {
	s.setRunning(false)
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func fsEventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "file_created"
	case op&fsnotify.Remove != 0:
		return "file_removed"
	case op&fsnotify.Rename != 0:
		return "file_renamed"
	case op&fsnotify.Write != 0:
		return "file_modified"
	case op&fsnotify.Chmod != 0:
		return "file_permissions_changed"
	default:
		return "file_event"
	}
}

// isWatchedFile reports whether name is one of the explicitly watched
// paths, or lives directly under one of them (the directory-watch case). A
// path outside every watched entry is a no-op: fsnotify occasionally
// reports sibling-directory churn when watching a parent for a single
// file, and that noise is filtered here rather than alerted on.
func isWatchedFile(watched []string, name string) bool {
	if len(watched) == 0 {
		return true
	}
	for _, w := range watched {
		if name == w {
			return true
		}
		if filepath.Dir(name) == w {
			return true
		}
	}
	return false
}
