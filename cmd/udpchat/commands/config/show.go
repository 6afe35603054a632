package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/output"
	"github.com/agonych/udp-chat/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective UDPChat-AI configuration.

Defaults, the configuration file and environment overrides are merged
before printing, so the output is what the server would actually run
with. By default outputs YAML format. Use --output to change format.

Examples:
  # Show effective config as YAML
  udpchat config show

  # Show as JSON
  udpchat config show --output json

  # Show a specific config file
  udpchat config show --config /etc/udpchat/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
