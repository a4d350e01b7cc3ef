package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tivon521/grok2aoi/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the server.

Environment variable overrides are applied before validation, so the
command checks the same effective configuration that 'run' would use.

Examples:
  # Validate the default configuration file
  grok2aoi validate

  # Validate a specific file
  grok2aoi validate --config /etc/grok2aoi/config.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d problems)\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s\n", fe.Error())
			}
			return fmt.Errorf("invalid configuration: %s", cfgFile)
		}
		return err
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  storage backend: %s (%s)\n", cfg.Storage.Backend, cfg.Storage.Path)
	fmt.Printf("  credential file: %s\n", cfg.Credentials.File)
	fmt.Printf("  conversation ttl: %s\n", cfg.Conversations.TTL)
	return nil
}
