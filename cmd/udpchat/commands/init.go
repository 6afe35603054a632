package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agonych/udp-chat/internal/cli/output"
	"github.com/agonych/udp-chat/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample UDPChat-AI configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/udpchat/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  udpchat init

  # Initialize with custom path
  udpchat init --config /etc/udpchat/config.yaml

  # Force overwrite existing config
  udpchat init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	output.DefaultPrinter().Success(fmt.Sprintf("Configuration file created at: %s", configPath))
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Create the database schema with: udpchat initdb")
	fmt.Println("  3. Start the server with: udpchat start")
	fmt.Printf("  4. Or specify custom config: udpchat start --config %s\n", configPath)

	return nil
}
