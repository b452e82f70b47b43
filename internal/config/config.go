// Package config loads the declarative YAML configuration file into typed
// settings with defaults applied.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vigil/internal/events"
)

// MonitorConfig configures a single sampler.
type MonitorConfig struct {
	Enabled  bool `yaml:"enabled"`
	Interval int  `yaml:"interval"` // seconds
}

// NetworkMonitorConfig configures the listening-socket sampler.
type NetworkMonitorConfig struct {
	MonitorConfig `yaml:",inline"`
	IgnoredPorts  []int `yaml:"ignored_ports"`
}

// PortScanMonitorConfig configures the port-scan sampler.
type PortScanMonitorConfig struct {
	MonitorConfig `yaml:",inline"`
	Threshold     int `yaml:"threshold"`
	WindowSeconds int `yaml:"window_seconds"`
}

// OllamaConfig configures the LLM enrichment client.
type OllamaConfig struct {
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	Timeout     int    `yaml:"timeout"` // seconds
	MinSeverity string `yaml:"min_severity"`
	RateLimit   int    `yaml:"rate_limit"` // seconds
}

// AlertsConfig configures the alert pipeline.
type AlertsConfig struct {
	LogFile         string `yaml:"log_file"`
	ToastEnabled    bool   `yaml:"toast_enabled"`
	DedupWindow     int    `yaml:"dedup_window"`     // seconds
	ThrottlePerRule int    `yaml:"throttle_per_rule"` // seconds
}

// DashboardConfig configures the live web dashboard.
type DashboardConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Config is the top-level declarative configuration.
type Config struct {
	Monitors struct {
		Network    NetworkMonitorConfig  `yaml:"network"`
		PortScan   PortScanMonitorConfig `yaml:"portscan"`
		EventLog   MonitorConfig         `yaml:"eventlog"`
		Process    MonitorConfig         `yaml:"process"`
		Filesystem MonitorConfig         `yaml:"filesystem"`
	} `yaml:"monitors"`

	Ollama    OllamaConfig    `yaml:"ollama"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Dashboard DashboardConfig `yaml:"dashboard"`

	RulesPath        string   `yaml:"rules_path"`
	WatchedPaths     []string `yaml:"watched_paths"`
	TrustedProcesses []string `yaml:"trusted_processes"`
}

// LoadFile reads and parses the configuration file at path, applying
// defaults to every unset field.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Load(data)
}

// Load parses configuration YAML data, applying defaults.
func Load(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a configuration populated with every documented default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Monitors.Network.Interval == 0 {
		cfg.Monitors.Network.Interval = 15
	}
	if cfg.Monitors.PortScan.Interval == 0 {
		cfg.Monitors.PortScan.Interval = 10
	}
	if cfg.Monitors.PortScan.Threshold == 0 {
		cfg.Monitors.PortScan.Threshold = 10
	}
	if cfg.Monitors.PortScan.WindowSeconds == 0 {
		cfg.Monitors.PortScan.WindowSeconds = 120
	}
	if cfg.Monitors.EventLog.Interval == 0 {
		cfg.Monitors.EventLog.Interval = 60
	}
	if cfg.Monitors.Process.Interval == 0 {
		cfg.Monitors.Process.Interval = 20
	}
	if cfg.Monitors.Filesystem.Interval == 0 {
		cfg.Monitors.Filesystem.Interval = 5
	}

	if cfg.Ollama.MinSeverity == "" {
		cfg.Ollama.MinSeverity = "MEDIUM"
	}
	if cfg.Ollama.RateLimit == 0 {
		cfg.Ollama.RateLimit = 5
	}
	if cfg.Ollama.Timeout == 0 {
		cfg.Ollama.Timeout = 30
	}

	if cfg.Alerts.LogFile == "" {
		cfg.Alerts.LogFile = "alerts.jsonl"
	}
	if cfg.Alerts.DedupWindow == 0 {
		cfg.Alerts.DedupWindow = 300
	}
	if cfg.Alerts.ThrottlePerRule == 0 {
		cfg.Alerts.ThrottlePerRule = 60
	}

	if cfg.Dashboard.Host == "" {
		cfg.Dashboard.Host = "127.0.0.1"
	}
	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = 8080
	}
}

// MinSeverity parses the configured Ollama.MinSeverity, defaulting to
// MEDIUM if the configured value is invalid.
func (c *Config) MinSeverity() events.Severity {
	sev, err := events.ParseSeverity(c.Ollama.MinSeverity)
	if err != nil {
		return events.SeverityMedium
	}
	return sev
}

// DedupWindow returns alerts.dedup_window as a time.Duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Alerts.DedupWindow) * time.Second
}

// ThrottlePerRule returns alerts.throttle_per_rule as a time.Duration.
func (c *Config) ThrottlePerRule() time.Duration {
	return time.Duration(c.Alerts.ThrottlePerRule) * time.Second
}

// OllamaTimeout returns ollama.timeout as a time.Duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.Timeout) * time.Second
}

// OllamaRateLimit returns ollama.rate_limit as a time.Duration.
func (c *Config) OllamaRateLimit() time.Duration {
	return time.Duration(c.Ollama.RateLimit) * time.Second
}

// DashboardAddr returns the host:port address the dashboard should bind.
func (c *Config) DashboardAddr() string {
	return fmt.Sprintf("%s:%d", c.Dashboard.Host, c.Dashboard.Port)
}
