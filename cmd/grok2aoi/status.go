package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tivon521/grok2aoi/pkg/cli"
)

var statusFlags struct {
	server string
	appKey string
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running gateway for credential and request statistics",
	Long: `Query the administrative endpoints of a running gateway and print
credential pool health, conversation counts, and request statistics.

Examples:
  # Query the local gateway
  grok2aoi status --app-key secret

  # Query a remote gateway as JSON
  grok2aoi status --server http://10.0.0.5:8180 --app-key secret --format json`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusFlags.server, "server", "http://127.0.0.1:8180", "gateway base URL")
	statusCmd.Flags().StringVar(&statusFlags.appKey, "app-key", "", "admin key (X-App-Key)")
	statusCmd.Flags().StringVar(&statusFlags.format, "format", "text", "output format: text, json")
}

func showStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 15 * time.Second}

	var stats map[string]any
	if err := adminGet(client, "/admin/conversations/stats", &stats); err != nil {
		return cli.NewCommandError("status", err)
	}
	var pool map[string]any
	if err := adminGet(client, "/admin/cache", &pool); err != nil {
		return cli.NewCommandError("status", err)
	}

	result := map[string]any{
		"server":      statusFlags.server,
		"credentials": pool,
		"stats":       stats,
	}

	if statusFlags.format == "json" {
		return cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, result)
	}

	fmt.Printf("Gateway: %s\n", statusFlags.server)
	if accounts, ok := pool["online_accounts"].([]any); ok {
		fmt.Printf("Credentials: %d\n", len(accounts))
	}
	if conv, ok := stats["conversations"].(map[string]any); ok {
		if total, ok := conv["total_conversations"].(float64); ok {
			fmt.Printf("Conversations: %.0f\n", total)
		}
	}
	if reqs, ok := stats["requests"].(map[string]any); ok {
		if today, ok := reqs["today"].(map[string]any); ok {
			fmt.Printf("Requests today: total=%v success_rate=%v%%\n",
				today["total"], today["success_rate"])
		}
	}
	return nil
}

func adminGet(client *http.Client, path string, dst any) error {
	req, err := http.NewRequest(http.MethodGet, statusFlags.server+path, nil)
	if err != nil {
		return err
	}
	if statusFlags.appKey != "" {
		req.Header.Set("X-App-Key", statusFlags.appKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
