package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/edgelogd/internal/config"
	"github.com/marmos91/edgelogd/internal/model"
	"github.com/spf13/cobra"
)

var (
	schemaOutput string
	schemaTarget string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Generate JSON schema for configuration or the record format",
	Long: `Generate a JSON schema for the edgelogd configuration file or for the
JSONL log record format it ingests.

The schema can be used for:
  - IDE autocompletion (VS Code, IntelliJ, etc.)
  - Configuration or record validation
  - Documentation generation

Examples:
  # Print the config schema to stdout
  edgelogd config schema

  # Print the JSONL record schema instead
  edgelogd config schema --target record

  # Save schema to file
  edgelogd config schema --output config.schema.json`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Output file (default: stdout)")
	schemaCmd.Flags().StringVar(&schemaTarget, "target", "config", "Schema target: config|record")
}

func runSchema(cmd *cobra.Command, args []string) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var schema *jsonschema.Schema
	switch schemaTarget {
	case "config":
		schema = reflector.Reflect(&config.Config{})
		schema.Title = "edgelogd Configuration"
		schema.Description = "Configuration schema for the edgelogd agent"
	case "record":
		schema = reflector.Reflect(&model.LogRecord{})
		schema.Title = "edgelogd Log Record"
		schema.Description = "JSONL wire format accepted by the edgelogd ingestion pipeline"
	default:
		return fmt.Errorf("unknown schema target %q (expected config|record)", schemaTarget)
	}
	schema.Version = "https://json-schema.org/draft/2020-12/schema"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if schemaOutput != "" {
		if err := os.WriteFile(schemaOutput, schemaJSON, 0644); err != nil {
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "JSON schema written to %s\n", schemaOutput)
		return nil
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schemaJSON))
	return nil
}
