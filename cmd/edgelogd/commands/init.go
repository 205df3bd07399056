package commands

import (
	"fmt"

	"github.com/marmos91/edgelogd/internal/cli/prompt"
	"github.com/marmos91/edgelogd/internal/config"
	"github.com/spf13/cobra"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample edgelogd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/edgelogd/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  edgelogd init

  # Walk through setup interactively
  edgelogd init --interactive

  # Initialize with custom path
  edgelogd init --config /etc/edgelogd/config.yaml

  # Force overwrite existing config
  edgelogd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "Walk through setup with interactive prompts")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)

	if initInteractive {
		if err := runInteractiveSetup(configPath); err != nil {
			if prompt.IsAborted(err) {
				fmt.Println("\nSetup aborted; the sample configuration file was still written.")
				return nil
			}
			return fmt.Errorf("interactive setup: %w", err)
		}
		fmt.Println("\nConfiguration updated from your answers.")
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file: set watch.monitoring_paths and iothub.device_id")
	fmt.Println("  2. Start the agent with: edgelogd start")
	fmt.Printf("  3. Or specify a custom config: edgelogd start --config %s\n", configPath)

	return nil
}

// runInteractiveSetup walks the operator through the fields an edge
// deployment can't sensibly default: which directories to watch, the
// device identity, and the upload destination.
func runInteractiveSetup(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load generated config: %w", err)
	}

	paths, err := prompt.InputCSV("Directory to monitor")
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		cfg.Watch.MonitoringPaths = paths
	}

	deviceID, err := prompt.InputRequired("Device ID")
	if err != nil {
		return err
	}
	cfg.IoTHub.DeviceID = deviceID

	bucket, err := prompt.InputRequired("Upload bucket")
	if err != nil {
		return err
	}
	cfg.IoTHub.Bucket = bucket

	endpoint, err := prompt.Input("Upload endpoint (blank for provider default)", cfg.IoTHub.Endpoint)
	if err != nil {
		return err
	}
	cfg.IoTHub.Endpoint = endpoint

	wantKey, err := prompt.Confirm("Set a shared access key now", false)
	if err != nil {
		return err
	}
	if wantKey {
		key, err := prompt.Secret("Shared access key")
		if err != nil {
			return err
		}
		cfg.IoTHub.ConnectionString = fmt.Sprintf("HostName=%s;DeviceId=%s;SharedAccessKey=%s", cfg.IoTHub.Host, deviceID, key)
	}

	level, err := prompt.Select("Log level", []string{"DEBUG", "INFO", "WARN", "ERROR"})
	if err != nil {
		return err
	}
	cfg.Logging.Level = level

	return config.SaveConfig(cfg, configPath)
}
