package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "grok2aoi",
	Short: "grok2aoi - OpenAI-compatible gateway for a web-session AI backend",
	Long: `Grok2aoi exposes an OpenAI-compatible chat completion API in front of a
web-session AI backend that has no official API.

It acts as an HTTP proxy for chat requests, providing:
  - OpenAI-compatible /v1/chat/completions with SSE streaming
  - Conversation continuity through content-addressed history hashing
  - Session credential rotation with health and quota tracking
  - Administrative batch operations over the credential fleet`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
