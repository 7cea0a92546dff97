package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/clarimed/clarimed/internal/cache"
	"github.com/clarimed/clarimed/internal/extract"
	"github.com/clarimed/clarimed/internal/model"
	"github.com/clarimed/clarimed/internal/monitor"
	"github.com/clarimed/clarimed/internal/pipeline"
	"github.com/clarimed/clarimed/internal/validate"
)

// app bundles the wired pipeline components for one CLI invocation.
type app struct {
	cfg          *model.Config
	logger       *zap.Logger
	collector    *monitor.Collector
	alerts       *monitor.AlertManager
	orchestrator *extract.Orchestrator
	engine       *validate.Engine
	processor    *pipeline.Processor
	audit        *pipeline.FileAuditSink
}

// loadConfig merges defaults, the config file and environment variables.
func loadConfig() *model.Config {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid configuration ignored: %v\n", err)
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose

	// API keys come from the environment unless set explicitly
	fillAPIKey(&cfg.Primary)
	fillAPIKey(&cfg.Secondary)

	return cfg
}

func fillAPIKey(backend *model.LLMConfig) {
	if backend.APIKey != "" {
		return
	}
	switch backend.Provider {
	case "openai":
		backend.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		backend.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// buildApp wires the cache, monitor, orchestrator, validation engine and
// processor from configuration. The returned cleanup closes the session and
// flushes the logger.
func buildApp(cfg *model.Config, auditPath, storeDir string) (*app, func(), error) {
	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	collector := monitor.NewCollector(cfg.Monitor.HistorySize, cfg.Monitor.RateWindow, logger, prometheus.NewRegistry())
	alerts := monitor.NewAlertManager(
		collector,
		cfg.Monitor.ErrorRatePerMinute,
		cfg.Monitor.CriticalPerHour,
		cfg.Monitor.AlertCooldown,
		monitor.NotifierFunc(func(alert monitor.Alert) {
			logger.Warn("alert raised",
				zap.String("type", string(alert.Type)),
				zap.String("severity", string(alert.Severity)),
				zap.String("message", alert.Message),
			)
		}),
		logger,
	)

	store := buildCache(cfg)

	orchestrator, err := extract.NewOrchestrator(cfg, store, collector, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("build orchestrator: %w", err)
	}

	engine, err := validate.NewEngine(cfg.Validation)
	if err != nil {
		return nil, nil, fmt.Errorf("build validation engine: %w", err)
	}

	var docStore pipeline.Store
	if storeDir != "" {
		fs, err := pipeline.NewFileStore(storeDir)
		if err != nil {
			return nil, nil, err
		}
		docStore = fs
	}

	var audit *pipeline.FileAuditSink
	var auditSink pipeline.AuditSink
	if auditPath != "" {
		audit = pipeline.NewFileAuditSink(auditPath)
		auditSink = audit
	}

	processor := pipeline.NewProcessor(
		pipeline.FileTextExtractor{},
		orchestrator,
		engine,
		pipeline.BasicConverter{},
		docStore,
		auditSink,
		collector,
		logger,
	)

	a := &app{
		cfg:          cfg,
		logger:       logger,
		collector:    collector,
		alerts:       alerts,
		orchestrator: orchestrator,
		engine:       engine,
		processor:    processor,
		audit:        audit,
	}

	cleanup := func() {
		orchestrator.Close()
		if audit != nil {
			_ = audit.Close()
		}
		_ = logger.Sync()
	}
	return a, cleanup, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func buildCache(cfg *model.Config) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}
	return cache.NewLayeredCache(cfg.Cache.TTL, filepath.Join(home, ".clarimed", "cache"), cfg.Cache.TTL)
}
