package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "DEBUG"

watch:
  monitoring_paths:
    - "` + yamlSafePath(tmpDir) + `/incoming"

iothub:
  connection_string: "HostName=h;DeviceId=d1;SharedAccessKey=k"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Batch.MaxBatchItems != 10000 {
		t.Errorf("expected default max_batch_items 10000, got %d", cfg.Batch.MaxBatchItems)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("expected default retry max_attempts 5, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config to be returned")
	}
	if len(cfg.Watch.MonitoringPaths) == 0 {
		t.Error("expected a default monitoring path")
	}
}

func TestValidate_RejectsMissingMonitoringPaths(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Watch.MonitoringPaths = nil

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty monitoring_paths")
	}
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid logging level")
	}
}

func TestByteSizeDecodeHook_ParsesHumanReadableSizes(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
watch:
  monitoring_paths:
    - "` + yamlSafePath(tmpDir) + `"
batch:
  max_batch_size_bytes: "2Mi"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Batch.MaxBatchSizeBytes.Uint64() != 2*1024*1024 {
		t.Errorf("expected 2Mi to parse to %d bytes, got %d", 2*1024*1024, cfg.Batch.MaxBatchSizeBytes.Uint64())
	}
}
