package samplers

import "testing"

func TestNewPortScanSamplerAppliesDefaults(t *testing.T) {
	s := NewPortScanSampler(0, 0)
	if s.threshold != defaultPortScanThreshold {
		t.Errorf("expected default threshold %d, got %d", defaultPortScanThreshold, s.threshold)
	}
	if s.window != defaultPortScanWindow {
		t.Errorf("expected default window %v, got %v", defaultPortScanWindow, s.window)
	}
}

func TestNewPortScanSamplerHonorsOverrides(t *testing.T) {
	s := NewPortScanSampler(5, 0)
	if s.threshold != 5 {
		t.Errorf("expected threshold 5, got %d", s.threshold)
	}
}

func TestLoopbackRemotesExcludesKnownAddresses(t *testing.T) {
	for _, addr := range []string{"127.0.0.1", "::1", "0.0.0.0"} {
		if _, ok := loopbackRemotes[addr]; !ok {
			t.Errorf("expected %q to be excluded as a loopback remote", addr)
		}
	}
	if _, ok := loopbackRemotes["1.2.3.4"]; ok {
		t.Error("expected a non-loopback remote to not be excluded")
	}
}
