package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/edgelogd/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the edgelogd agent.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (EDGELOGD_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Health contains the health-endpoint HTTP server configuration
	Health HealthConfig `mapstructure:"health" yaml:"health"`

	// ShutdownTimeout is a graceful-shutdown time limit; it is validated and
	// defaulted to 30s, but no shutdown code reads it.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Watch configures the directory watcher and stability detector
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	// Batch configures the batch processor
	Batch BatchConfig `mapstructure:"batch" yaml:"batch"`

	// Retry configures the retry policy shared by connect and upload
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`

	// IoTHub configures the device-authenticated upload channel
	IoTHub IoTHubConfig `mapstructure:"iothub" yaml:"iothub"`

	// Retention configures the local retention manager
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`

	// Ledger configures the durable job ledger
	Ledger LedgerConfig `mapstructure:"ledger" yaml:"ledger"`

	// DedupIndex configures the restart dedup fast-path index
	DedupIndex DedupIndexConfig `mapstructure:"dedup_index" yaml:"dedup_index"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// HealthConfig configures the /healthz/* HTTP server.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// WatchConfig configures the directory watcher and stability detector.
type WatchConfig struct {
	MonitoringPaths            []string      `mapstructure:"monitoring_paths" validate:"required,min=1" yaml:"monitoring_paths"`
	FileFilter                 string        `mapstructure:"file_filter" yaml:"file_filter"`
	FileExtensions              []string      `mapstructure:"file_extensions" yaml:"file_extensions"`
	IncludeSubdirectories      bool          `mapstructure:"include_subdirectories" yaml:"include_subdirectories"`
	StabilizationPeriod        time.Duration `mapstructure:"stabilization_period_seconds" yaml:"stabilization_period_seconds"`
	CheckInterval              time.Duration `mapstructure:"check_interval_ms" yaml:"check_interval_ms"`
	MaxDirectories             int           `mapstructure:"max_directories" validate:"omitempty,gt=0" yaml:"max_directories"`
	LargeFileSizeThreshold     bytesize.ByteSize `mapstructure:"large_file_size_threshold" yaml:"large_file_size_threshold"`
}

// BatchConfig configures the batch processor.
type BatchConfig struct {
	MaxBatchSizeBytes        bytesize.ByteSize `mapstructure:"max_batch_size_bytes" yaml:"max_batch_size_bytes"`
	MaxBatchItems            int               `mapstructure:"max_batch_items" validate:"omitempty,gt=0" yaml:"max_batch_items"`
	ProcessingInterval       time.Duration     `mapstructure:"processing_interval_seconds" yaml:"processing_interval_seconds"`
	IdleTimeout              time.Duration     `mapstructure:"idle_timeout_ms" yaml:"idle_timeout_ms"`
}

// RetryConfig configures the exponential-backoff retry policy used by the
// upload client for both connect() and per-step upload calls.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"omitempty,gt=0" yaml:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff_s" yaml:"initial_backoff_s"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff_s" yaml:"max_backoff_s"`
}

// IoTHubConfig configures the device-authenticated upload channel.
type IoTHubConfig struct {
	ConnectionString string `mapstructure:"connection_string" yaml:"connection_string,omitempty"`
	Host             string `mapstructure:"host" yaml:"host,omitempty"`
	DeviceID         string `mapstructure:"device_id" yaml:"device_id,omitempty"`
	SasToken         string `mapstructure:"sas_token" yaml:"sas_token,omitempty"`
	UploadFolder     string `mapstructure:"upload_folder" yaml:"upload_folder"`

	// Endpoint is the S3-compatible endpoint backing upload/s3transport. Not
	// part of the original device-auth contract, but required to stand up a
	// concrete transport (see DESIGN.md on transport grounding).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region   string `mapstructure:"region" yaml:"region,omitempty"`
}

// RetentionConfig configures the local retention manager.
type RetentionConfig struct {
	RetentionDays           int               `mapstructure:"retention_days" yaml:"retention_days"`
	LargeFileRetentionDays  int               `mapstructure:"large_file_retention_days" yaml:"large_file_retention_days"`
	LargeFileSizeThreshold  bytesize.ByteSize `mapstructure:"large_file_size_threshold" yaml:"large_file_size_threshold"`
	ArchiveSubdir           string            `mapstructure:"archive_subdir" yaml:"archive_subdir,omitempty"`
	CompressProcessedFiles  bool              `mapstructure:"compress_processed_files" yaml:"compress_processed_files"`
	MinFreeDiskGB           float64           `mapstructure:"min_free_disk_gb" yaml:"min_free_disk_gb,omitempty"`
}

// LedgerConfig configures the durable SQLite-backed job ledger (C11).
type LedgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DedupIndexConfig configures the BadgerDB-backed dedup fast path (C12).
type DedupIndexConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !found {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	// Keys ending in _ms hold bare millisecond counts; rewrite them as
	// duration strings so the seconds-based decode hook does not apply.
	for _, key := range v.AllKeys() {
		if !strings.HasSuffix(key, "_ms") {
			continue
		}
		switch n := v.Get(key).(type) {
		case int, int64:
			v.Set(key, fmt.Sprintf("%vms", n))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when no file exists.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  edgelogd init\n\n"+
				"Or specify a custom config file:\n"+
				"  edgelogd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  edgelogd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// Validate runs struct-tag validation over a loaded Config.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// SaveConfig saves the configuration to the specified file path as YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("EDGELOGD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("retention.compress_processed_files", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationSecondsDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "1Gi", "500Mi".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationSecondsDecodeHook converts bare numbers to time.Duration by
// treating them as seconds, while still accepting Go duration strings like
// "30s". Bare numbers under `_ms`-suffixed keys never reach this hook as
// numbers: Load rewrites them as millisecond duration strings first.
func durationSecondsDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "edgelogd")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "edgelogd")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
