package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfigTemplate = `# edgelogd Configuration File
#
# Configuration can also be overridden via environment variables using the
# EDGELOGD_<SECTION>_<KEY> format, e.g. EDGELOGD_LOGGING_LEVEL=DEBUG.

logging:
  level: INFO
  format: text
  output: stdout

shutdown_timeout: 30s

watch:
  monitoring_paths:
    - /var/log/edgelogd/incoming
  file_extensions:
    - .jsonl
    - .json
    - .log
  include_subdirectories: false
  stabilization_period_seconds: 5
  check_interval_ms: 1000
  max_directories: 10
  large_file_size_threshold: 50Mi

batch:
  max_batch_size_bytes: 1Mi
  max_batch_items: 10000
  processing_interval_seconds: 30
  idle_timeout_ms: 5000

retry:
  max_attempts: 5
  initial_backoff_s: 1s
  max_backoff_s: 30s

iothub:
  # connection_string: "HostName=...;DeviceId=...;SharedAccessKey=..."
  device_id: ""
  upload_folder: logs
  endpoint: ""
  bucket: ""
  region: ""

retention:
  retention_days: 7
  large_file_retention_days: 30
  large_file_size_threshold: 50Mi
  compress_processed_files: true

ledger:
  path: /var/lib/edgelogd/ledger.db

dedup_index:
  path: /var/lib/edgelogd/dedup

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

metrics:
  enabled: false
  port: 9090

health:
  enabled: true
  port: 8081
`

// InitConfig writes a sample configuration file to the default location,
// refusing to overwrite an existing file unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
