package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tivon521/grok2aoi/pkg/cli"
	"github.com/Tivon521/grok2aoi/pkg/config"
	"github.com/Tivon521/grok2aoi/pkg/server"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway server",
	Long: `Start the grok2aoi gateway with the specified configuration.

The server loads the credential pools, restores persisted conversations
and statistics, and serves the OpenAI-compatible API until interrupted.

Examples:
  # Start with the default configuration file (config.yaml)
  grok2aoi run

  # Start with a custom configuration file
  grok2aoi run --config /etc/grok2aoi/config.yaml

  # Override the listen address
  grok2aoi run --listen 0.0.0.0:8180

  # Validate configuration and exit without starting
  grok2aoi run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "listen address (overrides config)")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate configuration and exit")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Flag overrides take precedence over file and environment.
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("grok2aoi v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)

	app, err := server.NewApp(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/health\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", cfg.Server.ListenAddress)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal, a server error or context
	// cancellation, and handles graceful shutdown itself.
	srv := server.NewServer(app)
	if err := srv.Start(context.Background()); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
