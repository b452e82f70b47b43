// Command vigild is the intrusion detection daemon: it runs the
// configured samplers, evaluates their events against the rule catalog,
// and drives every resulting alert through the enrichment/journal/toast/
// dashboard pipeline.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil/internal/config"
	"vigil/internal/dashboard"
	"vigil/internal/engine"
	"vigil/internal/journal"
	"vigil/internal/llm"
	"vigil/internal/logging"
	"vigil/internal/notify"
	"vigil/internal/pipeline"
	"vigil/internal/rules"
	"vigil/internal/samplers"
	"vigil/internal/ttlcache"
)

func main() {
	var cfgPath, dbPath, socketPath string
	flag.StringVar(&cfgPath, "config", envOrDefault("VIGIL_CONFIG", "vigil.yaml"), "path to the YAML configuration file")
	flag.StringVar(&dbPath, "db", envOrDefault("VIGIL_JOURNAL_DB", "journal.db"), "path to the alert journal SQLite database")
	flag.StringVar(&socketPath, "socket", envOrDefault("VIGIL_JOURNAL_SOCKET", ""), "Unix socket for real-time alert fan-out (disabled if empty)")

	// Init must run before flag.Parse so it can strip --log-level before
	// the flag package sees it.
	remaining := logging.Init(os.Args[1:])
	flag.CommandLine.Parse(remaining) //nolint:errcheck

	cfg, err := config.LoadFile(cfgPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	if err := samplers.CheckPrivilege(); err != nil {
		slog.Warn("running with reduced privileges; some samplers may report partial data", "err", err)
	}

	catalog, err := rules.LoadFile(cfg.RulesPath)
	if err != nil {
		slog.Error("failed to load rule catalog", "path", cfg.RulesPath, "err", err)
		os.Exit(1)
	}
	slog.Info("rule catalog loaded", "path", cfg.RulesPath, "rules", len(catalog.Rules))

	journalStore, err := journal.Open(journal.Config{DBPath: dbPath, LogPath: cfg.Alerts.LogFile, SocketPath: socketPath})
	if err != nil {
		slog.Error("failed to open alert journal", "err", err)
		os.Exit(1)
	}
	defer journalStore.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runner := samplers.NewRunner()
	wireSamplers(runner, cfg)

	dash := dashboard.New(runner)

	var enricher *llm.Enricher
	if cfg.Ollama.URL != "" {
		client := llm.NewClient(llm.Config{
			URL:       cfg.Ollama.URL,
			Model:     cfg.Ollama.Model,
			Timeout:   cfg.OllamaTimeout(),
			RateLimit: cfg.OllamaRateLimit(),
		})
		client.Probe(ctx)
		go probeLoop(ctx, client)

		cache := ttlcache.New[string](cfg.DedupWindow(), 1000)
		enricher = llm.NewEnricher(client, cache, cfg.MinSeverity())
	} else {
		slog.Info("no ollama.url configured; LLM enrichment disabled")
	}

	pl := pipeline.New(pipeline.Config{
		DedupWindow:     cfg.DedupWindow(),
		ThrottlePerRule: cfg.ThrottlePerRule(),
		ToastEnabled:    cfg.Alerts.ToastEnabled,
	}, enrichAdapter(enricher), journalStore, notify.NewNotifier(), dash)

	eng := engine.New(ctx, rules.NewEngine(catalog), pl, dash)
	runner.Start(ctx, eng)

	var httpServer *http.Server
	if cfg.Dashboard.Enabled {
		mux := http.NewServeMux()
		dash.RegisterRoutes(mux)
		httpServer = &http.Server{
			Addr:         cfg.DashboardAddr(),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go dash.Run(ctx)
		go func() {
			slog.Info("dashboard listening", "addr", cfg.DashboardAddr())
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("dashboard server failed", "err", err)
			}
		}()
	}

	slog.Info("vigil started", "config", cfgPath)
	<-ctx.Done()
	slog.Info("shutting down")

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}
}

// wireSamplers registers every enabled monitor from cfg onto runner.
func wireSamplers(runner *samplers.Runner, cfg *config.Config) {
	if cfg.Monitors.Network.Enabled {
		sampler := samplers.NewNetworkSampler(cfg.TrustedProcesses, cfg.Monitors.Network.IgnoredPorts)
		runner.Add(sampler, time.Duration(cfg.Monitors.Network.Interval)*time.Second)
	}
	if cfg.Monitors.PortScan.Enabled {
		sampler := samplers.NewPortScanSampler(
			cfg.Monitors.PortScan.Threshold,
			time.Duration(cfg.Monitors.PortScan.WindowSeconds)*time.Second,
		)
		runner.Add(sampler, time.Duration(cfg.Monitors.PortScan.Interval)*time.Second)
	}
	if cfg.Monitors.EventLog.Enabled {
		runner.Add(samplers.NewEventLogSampler(""), time.Duration(cfg.Monitors.EventLog.Interval)*time.Second)
	}
	if cfg.Monitors.Process.Enabled {
		runner.Add(samplers.NewProcessSampler(cfg.TrustedProcesses), time.Duration(cfg.Monitors.Process.Interval)*time.Second)
	}
	if cfg.Monitors.Filesystem.Enabled && len(cfg.WatchedPaths) > 0 {
		runner.Add(samplers.NewFilesystemSampler(cfg.WatchedPaths), time.Duration(cfg.Monitors.Filesystem.Interval)*time.Second)
	}
}

// probeLoop periodically re-checks LLM reachability so an initially
// unavailable backend is picked back up without a restart.
func probeLoop(ctx context.Context, client *llm.Client) {
	ticker := time.NewTicker(llm.StartupProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.Probe(ctx)
		}
	}
}

// enrichAdapter returns nil as a typed pipeline.Enricher when enricher is
// nil, so the pipeline can treat "no LLM configured" the same as "LLM
// configured but nil interface" without a non-nil-interface-wrapping-nil
// surprise.
func enrichAdapter(enricher *llm.Enricher) pipeline.Enricher {
	if enricher == nil {
		return nil
	}
	return enricher
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
