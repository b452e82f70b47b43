package config

import (
	"testing"

	"vigil/internal/events"
)

func TestDefaultsApplied(t *testing.T) {
	cfg := Default()

	if cfg.Monitors.Network.Interval != 15 {
		t.Errorf("expected network interval default 15, got %d", cfg.Monitors.Network.Interval)
	}
	if cfg.Alerts.DedupWindow != 300 {
		t.Errorf("expected dedup window default 300, got %d", cfg.Alerts.DedupWindow)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("expected dashboard port default 8080, got %d", cfg.Dashboard.Port)
	}
	if cfg.MinSeverity() != events.SeverityMedium {
		t.Errorf("expected default min severity MEDIUM, got %v", cfg.MinSeverity())
	}
	if cfg.Monitors.PortScan.Threshold != 10 {
		t.Errorf("expected portscan threshold default 10, got %d", cfg.Monitors.PortScan.Threshold)
	}
	if cfg.Monitors.PortScan.WindowSeconds != 120 {
		t.Errorf("expected portscan window default 120, got %d", cfg.Monitors.PortScan.WindowSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	data := []byte(`
monitors:
  network:
    enabled: true
    interval: 30
ollama:
  url: http://localhost:11434
  min_severity: HIGH
alerts:
  dedup_window: 120
dashboard:
  port: 9090
rules_path: rules.yaml
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Monitors.Network.Enabled || cfg.Monitors.Network.Interval != 30 {
		t.Errorf("expected network monitor enabled with interval 30, got %+v", cfg.Monitors.Network)
	}
	if cfg.MinSeverity() != events.SeverityHigh {
		t.Errorf("expected min severity HIGH, got %v", cfg.MinSeverity())
	}
	if cfg.Alerts.DedupWindow != 120 {
		t.Errorf("expected dedup window 120, got %d", cfg.Alerts.DedupWindow)
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("expected dashboard port 9090, got %d", cfg.Dashboard.Port)
	}
	if cfg.RulesPath != "rules.yaml" {
		t.Errorf("expected rules_path rules.yaml, got %q", cfg.RulesPath)
	}
	// unset field falls back to default even when the rest of the document is overridden
	if cfg.Monitors.Process.Interval != 20 {
		t.Errorf("expected untouched process interval default 20, got %d", cfg.Monitors.Process.Interval)
	}
}

func TestLoadOverridesNetworkAndPortScanTuning(t *testing.T) {
	data := []byte(`
monitors:
  network:
    ignored_ports: [53, 123]
  portscan:
    threshold: 5
    window_seconds: 60
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Monitors.Network.IgnoredPorts) != 2 || cfg.Monitors.Network.IgnoredPorts[0] != 53 {
		t.Errorf("expected ignored_ports [53 123], got %v", cfg.Monitors.Network.IgnoredPorts)
	}
	if cfg.Monitors.PortScan.Threshold != 5 {
		t.Errorf("expected portscan threshold override 5, got %d", cfg.Monitors.PortScan.Threshold)
	}
	if cfg.Monitors.PortScan.WindowSeconds != 60 {
		t.Errorf("expected portscan window override 60, got %d", cfg.Monitors.PortScan.WindowSeconds)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("VIGIL_TEST_OLLAMA_URL", "http://example.internal:11434")
	data := []byte(`
ollama:
  url: ${VIGIL_TEST_OLLAMA_URL}
`)
	cfg, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ollama.URL != "http://example.internal:11434" {
		t.Errorf("expected expanded env var in ollama.url, got %q", cfg.Ollama.URL)
	}
}

func TestInvalidMinSeverityFallsBackToMedium(t *testing.T) {
	cfg := Default()
	cfg.Ollama.MinSeverity = "not-a-severity"
	if cfg.MinSeverity() != events.SeverityMedium {
		t.Errorf("expected fallback to MEDIUM for invalid configured severity, got %v", cfg.MinSeverity())
	}
}
