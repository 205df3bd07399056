package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/marmos91/edgelogd/internal/cli/output"
	"github.com/marmos91/edgelogd/internal/ledger"
	"github.com/marmos91/edgelogd/internal/model"
	"github.com/spf13/cobra"
)

var (
	logsLimit int
	logsState string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent file-processing activity",
	Long: `Display recent entries from edgelogd's job ledger.

Each entry reflects the last known state of one watched file: Tracked,
Stable, Parsing, Uploading, Processed, or Failed. This reads the ledger
database directly, so it requires filesystem access to the agent's
state directory (or an explicit --ledger path on a shared mount).

Examples:
  # Show the 20 most recent entries
  edgelogctl logs

  # Show only failed files
  edgelogctl logs --state Failed --limit 50`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "Maximum number of entries to show (0 = no limit)")
	logsCmd.Flags().StringVar(&logsState, "state", "", "Filter by file state (Tracked|Stable|Parsing|Uploading|Processed|Failed)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	path := resolveLedgerPath()
	l, err := ledger.Open(path)
	if err != nil {
		return fmt.Errorf("open ledger at %s: %w", path, err)
	}
	defer func() { _ = l.Close() }()

	ctx := context.Background()

	var entries []model.LedgerEntry
	if logsState != "" {
		entries, err = l.ListByState(ctx, model.FileState(logsState))
	} else {
		entries, err = l.List(ctx, logsLimit)
	}
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	if logsLimit > 0 && len(entries) > logsLimit {
		entries = entries[:logsLimit]
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, entries)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, entries)
	default:
		return output.PrintTable(os.Stdout, ledgerTable(entries))
	}
}

func ledgerTable(entries []model.LedgerEntry) *output.TableData {
	table := output.NewTableData("PATH", "STATE", "SIZE", "LAST TRANSITION", "ERROR")
	for _, e := range entries {
		errMsg := e.ErrorMessage
		if errMsg == "" {
			errMsg = "-"
		}
		table.AddRow(
			e.Path,
			e.State,
			strconv.FormatInt(e.SizeBytes, 10),
			e.LastTransition.Format("2006-01-02 15:04:05"),
			errMsg,
		)
	}
	return table
}
