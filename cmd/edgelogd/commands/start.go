package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/marmos91/edgelogd/internal/batch"
	"github.com/marmos91/edgelogd/internal/clock"
	"github.com/marmos91/edgelogd/internal/config"
	"github.com/marmos91/edgelogd/internal/dedupindex"
	"github.com/marmos91/edgelogd/internal/fileproc"
	"github.com/marmos91/edgelogd/internal/health"
	"github.com/marmos91/edgelogd/internal/ledger"
	"github.com/marmos91/edgelogd/internal/logger"
	"github.com/marmos91/edgelogd/internal/metrics"
	"github.com/marmos91/edgelogd/internal/orchestrator"
	"github.com/marmos91/edgelogd/internal/retention"
	"github.com/marmos91/edgelogd/internal/telemetry"
	"github.com/marmos91/edgelogd/internal/upload"
	"github.com/marmos91/edgelogd/internal/upload/s3transport"
	"github.com/marmos91/edgelogd/internal/watch"
	"github.com/spf13/cobra"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the edgelogd agent",
	Long: `Start the edgelogd agent with the specified configuration.

By default, the agent runs in the background (daemon mode). Use --foreground
to run in the foreground for debugging or when managed by a process
supervisor.

Examples:
  # Start in background (default)
  edgelogd start

  # Start in foreground
  edgelogd start --foreground

  # Start with custom config file
  edgelogd start --config /etc/edgelogd/config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/edgelogd/edgelogd.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/edgelogd/edgelogd.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "edgelogd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "edgelogd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
		go serveMetrics(cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))

	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open job ledger: %w", err)
	}
	defer func() { _ = led.Close() }()

	dedup, err := dedupindex.Open(cfg.DedupIndex.Path)
	if err != nil {
		return fmt.Errorf("failed to open dedup index: %w", err)
	}
	defer func() { _ = dedup.Close() }()

	transport := s3transport.New(s3transport.Config{
		Endpoint: cfg.IoTHub.Endpoint,
		Region:   cfg.IoTHub.Region,
		Bucket:   cfg.IoTHub.Bucket,
	})

	orch, err := orchestrator.New(
		orchestrator.Config{
			Directories: cfg.Watch.MonitoringPaths,
			Watch: watch.Options{
				MaxDirectories: cfg.Watch.MaxDirectories,
				FileExtensions: cfg.Watch.FileExtensions,
				FileFilter:     cfg.Watch.FileFilter,
			},
			Stability: watch.Config{
				StabilizationPeriod: cfg.Watch.StabilizationPeriod,
				CheckInterval:       cfg.Watch.CheckInterval,
			},
			FileProc: fileproc.Options{
				FileExtensions:         cfg.Watch.FileExtensions,
				FileFilter:             cfg.Watch.FileFilter,
				LargeFileSizeThreshold: int64(cfg.Watch.LargeFileSizeThreshold),
			},
			Batch: batch.Config{
				MaxBatchSizeBytes:  int64(cfg.Batch.MaxBatchSizeBytes),
				MaxBatchItems:      cfg.Batch.MaxBatchItems,
				ProcessingInterval: cfg.Batch.ProcessingInterval,
				IdleTimeout:        cfg.Batch.IdleTimeout,
			},
			Retention: retention.Config{
				Directories:            cfg.Watch.MonitoringPaths,
				RetentionDays:          cfg.Retention.RetentionDays,
				LargeFileRetentionDays: cfg.Retention.LargeFileRetentionDays,
				LargeFileSizeThreshold: int64(cfg.Retention.LargeFileSizeThreshold),
				ArchiveSubdir:          cfg.Retention.ArchiveSubdir,
				CompressProcessedFiles: cfg.Retention.CompressProcessedFiles,
			},
			BlobNamePrefix: cfg.IoTHub.UploadFolder,
			DeviceID:       cfg.IoTHub.DeviceID,
		},
		clock.Real{},
		transport,
		upload.RetryPolicy{
			MaxAttempts:    cfg.Retry.MaxAttempts,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
		},
		led,
		dedup,
	)
	if err != nil {
		return fmt.Errorf("failed to construct orchestrator: %w", err)
	}

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	if cfg.Health.Enabled {
		healthHandler := &health.Handler{Directories: cfg.Watch.MonitoringPaths, Uploader: orch}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Health.Port)
			if err := health.Serve(ctx, addr, healthHandler); err != nil {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("edgelogd is running, press Ctrl+C to stop")
	<-sigChan
	signal.Stop(sigChan)
	logger.Info("shutdown signal received, initiating graceful shutdown")

	cancel()
	orch.Stop()
	logger.Info("edgelogd stopped")

	return nil
}

func serveMetrics(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	addr := fmt.Sprintf(":%d", port)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server error", "error", err)
	}
}

// startDaemon starts the agent as a background daemon process.
func startDaemon() error {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	edgelogdStateDir := filepath.Join(stateDir, "edgelogd")

	if err := os.MkdirAll(edgelogdStateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = filepath.Join(edgelogdStateDir, "edgelogd.pid")
	}

	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("edgelogd is already running (PID %d)\nUse 'edgelogd stop' to stop the running instance", pid)
					}
				}
			}
		}
		_ = os.Remove(pidPath)
	}

	logPath := logFile
	if logPath == "" {
		logPath = filepath.Join(edgelogdStateDir, "edgelogd.log")
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	cmd := exec.Command(executable, daemonArgs...)

	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = logFileHandle.Close()

	fmt.Printf("edgelogd started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'edgelogd stop' to stop the agent")
	fmt.Println("Use 'edgelogd status' to check agent status")

	return nil
}
