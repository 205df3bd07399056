package config

import (
	"strings"
	"time"

	"github.com/marmos91/edgelogd/internal/bytesize"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyHealthDefaults(&cfg.Health)
	applyWatchDefaults(&cfg.Watch)
	applyBatchDefaults(&cfg.Batch)
	applyRetryDefaults(&cfg.Retry)
	applyRetentionDefaults(&cfg.Retention)
	applyLedgerDefaults(&cfg.Ledger)
	applyDedupIndexDefaults(&cfg.DedupIndex)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// Note: no defaults for MonitoringPaths or IoTHub credentials — the
	// user must configure at least one watched directory and a device
	// identity.
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyHealthDefaults(cfg *HealthConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8081
	}
}

func applyWatchDefaults(cfg *WatchConfig) {
	if cfg.StabilizationPeriod == 0 {
		cfg.StabilizationPeriod = 5 * time.Second
	}
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 1000 * time.Millisecond
	}
	if cfg.MaxDirectories == 0 {
		cfg.MaxDirectories = 10
	}
	if cfg.LargeFileSizeThreshold == 0 {
		cfg.LargeFileSizeThreshold = 50 * bytesize.MiB
	}
	if len(cfg.FileExtensions) == 0 && cfg.FileFilter == "" {
		cfg.FileExtensions = []string{".jsonl", ".json", ".log"}
	}
}

func applyBatchDefaults(cfg *BatchConfig) {
	if cfg.MaxBatchSizeBytes == 0 {
		cfg.MaxBatchSizeBytes = bytesize.MiB
	}
	if cfg.MaxBatchItems == 0 {
		cfg.MaxBatchItems = 10000
	}
	if cfg.ProcessingInterval == 0 {
		cfg.ProcessingInterval = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5000 * time.Millisecond
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
}

func applyRetentionDefaults(cfg *RetentionConfig) {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 7
	}
	if cfg.LargeFileRetentionDays == 0 {
		cfg.LargeFileRetentionDays = 30
	}
	if cfg.LargeFileSizeThreshold == 0 {
		cfg.LargeFileSizeThreshold = 50 * bytesize.MiB
	}
	// CompressProcessedFiles is left untouched here, since a decoded false
	// cannot be told apart from an omitted key. Its default of true comes
	// from the loader's viper default and from GetDefaultConfig.
}

func applyLedgerDefaults(cfg *LedgerConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/edgelogd/ledger.db"
	}
}

func applyDedupIndexDefaults(cfg *DedupIndexConfig) {
	if cfg.Path == "" {
		cfg.Path = "/var/lib/edgelogd/dedup"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied,
// used when no configuration file is present and by `edgelogd init`.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Watch: WatchConfig{
			MonitoringPaths: []string{"/var/log/edgelogd/incoming"},
		},
		Retention: RetentionConfig{
			CompressProcessedFiles: true,
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
