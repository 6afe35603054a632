package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the UDPChat-AI configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  udpchat config validate

  # Validate specific config file
  udpchat config validate --config /etc/udpchat/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if cfg.AI.Mode == "gpt" && cfg.AI.APIKey == "" {
		warnings = append(warnings, "AI mode is gpt but no API key is configured - AI_MESSAGE requests will fail")
	}
	if !cfg.API.APIEnabled() {
		warnings = append(warnings, "HTTP API disabled - health checks and metrics are unavailable")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  UDP listener:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  AI mode:         %s\n", cfg.AI.Mode)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
