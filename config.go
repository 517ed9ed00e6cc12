package flowguard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Gimel-Foundation/flowguard/internal/breaker"
	intconfig "github.com/Gimel-Foundation/flowguard/internal/config"
	"github.com/Gimel-Foundation/flowguard/internal/metriclog"
	"github.com/Gimel-Foundation/flowguard/internal/registry"
	"github.com/Gimel-Foundation/flowguard/internal/stat"
	"github.com/Gimel-Foundation/flowguard/internal/system"
	"github.com/Gimel-Foundation/flowguard/internal/telemetry"
)

// Config is the process-wide configuration schema (§6), re-exported so
// callers never need to import the internal config package directly.
type Config = intconfig.Config

// DefaultConfig returns the library's built-in defaults.
func DefaultConfig() Config { return intconfig.Default() }

// Core is the process-wide entry point: the rule registry, resource-node
// registry, optional metric log, system collector, Prometheus exporter
// and OpenTelemetry tracer built from one Config (§6's global-state
// singletons, given a documented initialization entry point per §9).
type Core struct {
	cfg      Config
	stat     *stat.Registry
	registry *registry.Registry
	listeners *breaker.ListenerRegistry
	collector *system.Collector
	writer   *metriclog.Writer
	metrics  *telemetry.Collector
	exporter *telemetry.Exporter
	tracer   *telemetry.Tracer
	watcher  *intconfig.Watcher
}

// InitDefault builds a Core from the built-in defaults (init_default,
// §6). Every resource bypasses every check until LoadRules installs
// rules for it, per §9's "pass all before initialization" tolerance.
func InitDefault() (*Core, error) {
	return InitWithConfig(DefaultConfig())
}

// InitWithConfig builds a Core from an already-loaded Config
// (init_with_config, §6).
func InitWithConfig(cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("flowguard: invalid configuration: %w", err)
	}

	c := &Core{cfg: cfg}
	c.stat = stat.NewRegistry(cfg.GlobalStat.SampleCountTotal, cfg.GlobalStat.IntervalMsTotal, cfg.MetricStat.SampleCount, cfg.MetricStat.IntervalMs, 0)
	c.listeners = breaker.NewListenerRegistry()

	c.collector = system.NewCollector(cfg.System.CPUIntervalMs, cfg.System.LoadIntervalMs, cfg.System.MemoryIntervalMs)
	c.collector.Start()

	if cfg.LogMetric.Directory != "" {
		writer, err := metriclog.NewWriter(metriclog.Config{
			Directory:      cfg.LogMetric.Directory,
			SingleMaxBytes: cfg.LogMetric.SingleFileMaxSize,
			MaxFileAmount:  cfg.LogMetric.MaxFileAmount,
		})
		if err != nil {
			return nil, fmt.Errorf("flowguard: opening metric log: %w", err)
		}
		c.writer = writer
	}

	if cfg.Exporter.Addr != "" {
		c.metrics = telemetry.NewCollector()
		c.exporter = telemetry.NewExporter(cfg.Exporter.Addr, cfg.Exporter.MetricsPath, c.metrics)
		c.exporter.Start(func(err error) {
			slog.Warn("flowguard: metrics exporter stopped", "err", err)
		})
	}

	if cfg.Tracing.ServiceName != "" {
		tracer, err := telemetry.NewTracer(telemetry.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			ServiceVersion: cfg.Tracing.ServiceVersion,
			Environment:    cfg.Tracing.Environment,
		})
		if err != nil {
			return nil, fmt.Errorf("flowguard: starting tracer: %w", err)
		}
		c.tracer = tracer
	}

	c.registry = registry.NewRegistry(c.stat, c.listeners, c.collector, c.writer, c.metrics, cfg.LogMetric.FlushIntervalSec)
	return c, nil
}

// InitWithConfigFile builds a Core from a YAML config file (§6's
// init_with_config_file), applying environment overrides on top and
// watching the file for subsequent changes: a reload only logs a notice.
// It rebuilds neither the system collector nor the rule registry or
// resource-node registry, since those own live statistics and
// controllers that a config reload must not discard.
func InitWithConfigFile(path string) (*Core, error) {
	cfg, err := intconfig.LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	c, err := InitWithConfig(cfg)
	if err != nil {
		return nil, err
	}

	watcher, err := intconfig.WatchFile(path, func(next Config) {
		slog.Info("flowguard: configuration file changed; system collector intervals and log rotation limits are not live-reloaded", "path", path)
		_ = next
	})
	if err != nil {
		slog.Warn("flowguard: could not start config file watcher, continuing with the loaded configuration", "path", path, "err", err)
	} else {
		c.watcher = watcher
	}
	return c, nil
}

// LoadRules validates, compiles and installs rules for kind (§4.8's
// load_rules). rules must be the slice type matching kind.
func (c *Core) LoadRules(kind Kind, rules any) (bool, error) {
	return c.registry.LoadRules(kind, rules)
}

// RegisterStateChangeListener registers a circuit-breaker state-change
// listener (§6's register_state_change_listener).
func (c *Core) RegisterStateChangeListener(l breaker.Listener) {
	c.listeners.Register(l)
}

// SetResourceType labels resource for the metric log's trailing column
// (§6); resources left unlabeled log as "common".
func (c *Core) SetResourceType(resource, resourceType string) {
	c.registry.ResourceType[resource] = resourceType
}

// Shutdown stops the system collector, closes the metric log, and
// shuts down the metrics exporter and tracer, in that order. Safe to
// call once during process teardown.
func (c *Core) Shutdown(ctx context.Context) error {
	if c.watcher != nil {
		c.watcher.Close()
	}
	if c.collector != nil {
		c.collector.Stop()
	}
	var firstErr error
	if c.writer != nil {
		if err := c.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.exporter != nil {
		if err := c.exporter.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.tracer != nil {
		if err := c.tracer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
