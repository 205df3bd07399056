package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/edgelogd/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	statusOutput     string
	statusPidFile    string
	statusHealthPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show agent status",
	Long: `Display the current status of the edgelogd agent.

This command checks the agent health by calling its /healthz endpoints
and displays liveness, filesystem, and upload-channel connectivity.

Examples:
  # Check status (uses default settings)
  edgelogd status

  # Check status with custom health port
  edgelogd status --health-port 9081

  # Output as JSON
  edgelogd status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/edgelogd/edgelogd.pid)")
	statusCmd.Flags().IntVar(&statusHealthPort, "health-port", 8081, "Health server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// AgentStatus represents the agent status information.
type AgentStatus struct {
	Running       bool   `json:"running" yaml:"running"`
	PID           int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message       string `json:"message" yaml:"message"`
	Live          bool   `json:"live" yaml:"live"`
	FilesystemOK  bool   `json:"filesystem_ok" yaml:"filesystem_ok"`
	IoTHubOK      bool   `json:"iothub_ok" yaml:"iothub_ok"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := AgentStatus{Message: "Agent is not running"}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	if pidData, err := os.ReadFile(pidPath); err == nil {
		if pid, err := strconv.Atoi(strings.TrimSpace(string(pidData))); err == nil {
			if process, err := os.FindProcess(pid); err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	client := &http.Client{Timeout: 2 * time.Second}
	status.Live = probeHealthz(client, statusHealthPort, "live")
	status.FilesystemOK = probeHealthz(client, statusHealthPort, "filesystem")
	status.IoTHubOK = probeHealthz(client, statusHealthPort, "iothub")

	if status.Live {
		status.Running = true
		if status.FilesystemOK && status.IoTHubOK {
			status.Message = "Agent is running and healthy"
		} else {
			status.Message = "Agent is running but reporting degraded health"
		}
	} else if status.Running {
		status.Message = "Agent process exists but health check failed"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func probeHealthz(client *http.Client, port int, endpoint string) bool {
	url := fmt.Sprintf("http://localhost:%d/healthz/%s", port, endpoint)
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	return body.Status == "healthy"
}

func printStatusTable(status AgentStatus) {
	fmt.Println()
	fmt.Println("edgelogd Agent Status")
	fmt.Println("======================")
	fmt.Println()

	if status.Running {
		if status.Live && status.FilesystemOK && status.IoTHubOK {
			fmt.Printf("  Status:      \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:      \033[33m● Running (degraded)\033[0m\n")
		}
		if status.PID != 0 {
			fmt.Printf("  PID:         %d\n", status.PID)
		}
		fmt.Printf("  Filesystem:  %s\n", okMark(status.FilesystemOK))
		fmt.Printf("  IoT Hub:     %s\n", okMark(status.IoTHubOK))
	} else {
		fmt.Printf("  Status:      \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}

func okMark(ok bool) string {
	if ok {
		return "\033[32mok\033[0m"
	}
	return "\033[31munhealthy\033[0m"
}
