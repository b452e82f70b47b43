package samplers

import "testing"

func TestIsWatchedFileExactMatch(t *testing.T) {
	watched := []string{"/etc/passwd", "/etc/shadow"}
	if !isWatchedFile(watched, "/etc/passwd") {
		t.Fatal("expected exact watched path to match")
	}
}

func TestIsWatchedFileParentDirectoryMatch(t *testing.T) {
	watched := []string{"/etc/myapp"}
	if !isWatchedFile(watched, "/etc/myapp/config.yaml") {
		t.Fatal("expected file directly under a watched directory to match")
	}
}

func TestIsWatchedFileRejectsUnrelatedPath(t *testing.T) {
	watched := []string{"/etc/myapp"}
	if isWatchedFile(watched, "/var/log/syslog") {
		t.Fatal("expected unrelated path to be a no-op, not a match")
	}
}

func TestIsWatchedFileEmptyListMatchesEverything(t *testing.T) {
	if !isWatchedFile(nil, "/any/path") {
		t.Fatal("expected an empty watch list to match everything (watch-all mode)")
	}
}
