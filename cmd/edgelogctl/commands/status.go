package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/marmos91/edgelogd/internal/cli/output"
	"github.com/spf13/cobra"
)

var statusHealthPort int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a remote agent's health",
	Long: `Query an edgelogd agent's health endpoints over HTTP.

Unlike "edgelogd status", which also checks a local PID file, edgelogctl
only has network reach to the agent, so it reports purely on what the
/healthz endpoints return.

Examples:
  # Check the local agent
  edgelogctl status

  # Check a remote agent
  edgelogctl status --host edge-03.example.com --health-port 8081`,
	RunE: runRemoteStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusHealthPort, "health-port", 8081, "Health server port")
}

// RemoteStatus is the operator-facing view of a single agent's health.
type RemoteStatus struct {
	Host         string `json:"host" yaml:"host"`
	Live         bool   `json:"live" yaml:"live"`
	FilesystemOK bool   `json:"filesystem_ok" yaml:"filesystem_ok"`
	IoTHubOK     bool   `json:"iothub_ok" yaml:"iothub_ok"`
	Message      string `json:"message" yaml:"message"`
}

func runRemoteStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 2 * time.Second}
	status := RemoteStatus{Host: serverHost}
	status.Live = probeHealthz(client, serverHost, statusHealthPort, "live")
	status.FilesystemOK = probeHealthz(client, serverHost, statusHealthPort, "filesystem")
	status.IoTHubOK = probeHealthz(client, serverHost, statusHealthPort, "iothub")

	switch {
	case !status.Live:
		status.Message = fmt.Sprintf("no response from %s:%d", serverHost, statusHealthPort)
	case status.FilesystemOK && status.IoTHubOK:
		status.Message = "agent is healthy"
	default:
		status.Message = "agent is running but reporting degraded health"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printRemoteStatusTable(status)
		return nil
	}
}

func probeHealthz(client *http.Client, host string, port int, endpoint string) bool {
	url := fmt.Sprintf("http://%s:%d/healthz/%s", host, port, endpoint)
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

func printRemoteStatusTable(status RemoteStatus) {
	fmt.Println()
	fmt.Printf("Agent at %s\n", status.Host)
	fmt.Println("================================")
	fmt.Println()
	fmt.Printf("  Live:        %s\n", okMark(status.Live))
	fmt.Printf("  Filesystem:  %s\n", okMark(status.FilesystemOK))
	fmt.Printf("  IoT Hub:     %s\n", okMark(status.IoTHubOK))
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
