package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Gimel-Foundation/flowguard/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := config.Default().Validate(); err != nil {
		t.Fatalf("expected the built-in defaults to validate, got %v", err)
	}
}

func TestLoadConfigAppliesEnvOverrides(t *testing.T) {
	t.Setenv("APP_NAME", "checkout")
	t.Setenv("APP_TYPE", "service")

	cfg := config.LoadConfig()
	if cfg.App.Name != "checkout" || cfg.App.Type != "service" {
		t.Fatalf("expected env overrides to apply, got %+v", cfg.App)
	}
}

func TestLoadConfigFileParsesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowguard.yaml")
	yamlBody := "app:\n  name: orders-service\n  type: service\nexporter:\n  addr: \":9100\"\n  metrics_path: /metrics\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("unexpected error writing config file: %v", err)
	}

	cfg, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error loading config file: %v", err)
	}
	if cfg.App.Name != "orders-service" {
		t.Fatalf("expected app.name from file, got %q", cfg.App.Name)
	}
	if cfg.Exporter.Addr != ":9100" || cfg.Exporter.MetricsPath != "/metrics" {
		t.Fatalf("expected exporter config from file, got %+v", cfg.Exporter)
	}
	if cfg.GlobalStat.SampleCountTotal != config.Default().GlobalStat.SampleCountTotal {
		t.Fatalf("expected unset fields to keep their defaults, got %+v", cfg.GlobalStat)
	}
}

func TestValidateRejectsMismatchedWindowGeometry(t *testing.T) {
	cfg := config.Default()
	cfg.MetricStat.IntervalMs = 750
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected a metric_stat interval that doesn't divide the bucket width to fail validation")
	}
}

func TestWatchFileReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowguard.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: initial\n  type: service\n"), 0o644); err != nil {
		t.Fatalf("unexpected error writing config file: %v", err)
	}

	reloaded := make(chan config.Config, 1)
	w, err := config.WatchFile(path, func(cfg config.Config) { reloaded <- cfg })
	if err != nil {
		t.Fatalf("unexpected error starting watcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("app:\n  name: updated\n  type: service\n"), 0o644); err != nil {
		t.Fatalf("unexpected error rewriting config file: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.App.Name != "updated" {
			t.Fatalf("expected reloaded app.name to be 'updated', got %q", cfg.App.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}
