// Package config loads the process-wide Config (§6) from defaults, an
// optional YAML file, and environment overrides, modeled on the teacher's
// pkg/auth.ProperConfig: a flat, JSON-tagged struct populated by getEnv*
// helpers with hardcoded defaults, rather than a config-framework
// dependency.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// App identifies the running process (§6's app.name/app.type).
type App struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// GlobalStat sizes the underlying bucket leap array every resource node
// shares (§4.1, §6's global_stat).
type GlobalStat struct {
	SampleCountTotal int   `json:"sample_count_total" yaml:"sample_count_total"`
	IntervalMsTotal  int64 `json:"interval_ms_total" yaml:"interval_ms_total"`
}

// MetricStat sizes each node's default sliding-window view (§4.2, §6's
// metric_stat). Must divide GlobalStat evenly.
type MetricStat struct {
	SampleCount int   `json:"sample_count" yaml:"sample_count"`
	IntervalMs  int64 `json:"interval_ms" yaml:"interval_ms"`
}

// LogMetric configures the metric log writer (§6's log.metric).
type LogMetric struct {
	FlushIntervalSec int64 `json:"flush_interval_sec" yaml:"flush_interval_sec"`
	SingleFileMaxSize int64 `json:"single_file_max_size" yaml:"single_file_max_size"`
	MaxFileAmount     int   `json:"max_file_amount" yaml:"max_file_amount"`
	Directory         string `json:"directory" yaml:"directory"`
}

// System configures the background metric collector (§4.7, §6's system).
type System struct {
	CPUIntervalMs    int64 `json:"cpu_interval_ms" yaml:"cpu_interval_ms"`
	MemoryIntervalMs int64 `json:"memory_interval_ms" yaml:"memory_interval_ms"`
	LoadIntervalMs   int64 `json:"load_interval_ms" yaml:"load_interval_ms"`
}

// Exporter configures the optional Prometheus scrape endpoint (§6's
// exporter.addr/metrics_path). Addr == "" disables the exporter.
type Exporter struct {
	Addr        string `json:"addr" yaml:"addr"`
	MetricsPath string `json:"metrics_path" yaml:"metrics_path"`
}

// Tracing configures the optional OpenTelemetry entry tracer. ServiceName
// == "" disables tracing.
type Tracing struct {
	ServiceName    string `json:"service_name" yaml:"service_name"`
	ServiceVersion string `json:"service_version" yaml:"service_version"`
	Environment    string `json:"environment" yaml:"environment"`
}

// Config is the process-wide configuration schema (§6).
type Config struct {
	App        App        `json:"app" yaml:"app"`
	GlobalStat GlobalStat `json:"global_stat" yaml:"global_stat"`
	MetricStat MetricStat `json:"metric_stat" yaml:"metric_stat"`
	LogMetric  LogMetric  `json:"log" yaml:"log"`
	System     System     `json:"system" yaml:"system"`
	Exporter   Exporter   `json:"exporter" yaml:"exporter"`
	Tracing    Tracing    `json:"tracing" yaml:"tracing"`
}

// Default returns the built-in defaults (init_default, §6), matching the
// core's own package-level default constants where they exist.
func Default() Config {
	return Config{
		App: App{Name: "flowguard", Type: "library"},
		GlobalStat: GlobalStat{
			SampleCountTotal: 120,
			IntervalMsTotal:  60000,
		},
		MetricStat: MetricStat{
			SampleCount: 2,
			IntervalMs:  1000,
		},
		LogMetric: LogMetric{
			FlushIntervalSec:  1,
			SingleFileMaxSize: 64 * 1024 * 1024,
			MaxFileAmount:     10,
			Directory:         "./logs/flowguard-metrics",
		},
		System: System{
			CPUIntervalMs:    1000,
			MemoryIntervalMs: 1000,
			LoadIntervalMs:   1000,
		},
	}
}

// LoadConfig builds the default configuration and applies environment
// overrides (init_default, §6).
func LoadConfig() Config {
	cfg := Default()
	applyEnvOverrides(&cfg)
	return cfg
}

// LoadConfigFile reads path as YAML over the defaults, then applies
// environment overrides on top (init_with_config_file, §6). CONF_FILE_PATH
// overrides path itself when set.
func LoadConfigFile(path string) (Config, error) {
	if envPath := os.Getenv("CONF_FILE_PATH"); envPath != "" {
		path = envPath
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides applies APP_NAME/APP_TYPE (§6's environment overrides).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_NAME"); v != "" {
		cfg.App.Name = v
	}
	if v := os.Getenv("APP_TYPE"); v != "" {
		cfg.App.Type = v
	}
}

// Validate enforces the cross-field invariant MetricStat and GlobalStat
// must both satisfy for a sliding-window view to divide evenly into the
// underlying array (§4.2).
func (c Config) Validate() error {
	if c.GlobalStat.SampleCountTotal <= 0 || c.GlobalStat.IntervalMsTotal <= 0 {
		return fmt.Errorf("config: global_stat sample_count_total and interval_ms_total must be > 0")
	}
	if c.MetricStat.SampleCount <= 0 || c.MetricStat.IntervalMs <= 0 {
		return fmt.Errorf("config: metric_stat sample_count and interval_ms must be > 0")
	}
	bucketMs := c.GlobalStat.IntervalMsTotal / int64(c.GlobalStat.SampleCountTotal)
	if c.MetricStat.IntervalMs%bucketMs != 0 {
		return fmt.Errorf("config: metric_stat.interval_ms (%d) must be a multiple of the global bucket width (%d)", c.MetricStat.IntervalMs, bucketMs)
	}
	if c.MetricStat.IntervalMs/bucketMs != int64(c.MetricStat.SampleCount) {
		return fmt.Errorf("config: metric_stat.sample_count does not match interval_ms/bucket_ms")
	}
	return nil
}
