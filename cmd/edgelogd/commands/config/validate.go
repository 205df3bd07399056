package config

import (
	"fmt"

	"github.com/marmos91/edgelogd/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the edgelogd configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  edgelogd config validate

  # Validate specific config file
  edgelogd config validate --config /etc/edgelogd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string

	if len(cfg.Watch.MonitoringPaths) == 0 {
		warnings = append(warnings, "watch.monitoring_paths is empty - the agent has nothing to watch")
	}
	if cfg.IoTHub.DeviceID == "" {
		warnings = append(warnings, "iothub.device_id not configured - uploads will be unauthenticated")
	}
	if cfg.IoTHub.Bucket == "" {
		warnings = append(warnings, "iothub.bucket not configured - upload transport cannot connect")
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Monitoring paths:  %d\n", len(cfg.Watch.MonitoringPaths))
	fmt.Printf("  Log level:         %s\n", cfg.Logging.Level)
	fmt.Printf("  Retention days:    %d\n", cfg.Retention.RetentionDays)

	return nil
}
