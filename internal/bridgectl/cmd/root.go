// Package cmd holds the bridgectl command tree.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/converso-labs/chatbridge/internal/bridgectl/client"
)

var rootCmd = &cobra.Command{
	Use:   "bridgectl",
	Short: "chatbridge operator CLI",
	Long: `bridgectl is the operator command-line interface for chatbridge.

Inspect and requeue dead-lettered webhook jobs, manage anomaly IP
blocks, and check service health from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", envOr("BRIDGECTL_SERVER", "http://localhost:8080"), "chatbridge base URL")
	rootCmd.PersistentFlags().String("token", os.Getenv("BRIDGECTL_TOKEN"), "admin JWT bearer token")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json, yaml")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// adminClient builds the API client from the persistent flags.
func adminClient(cmd *cobra.Command) *client.AdminClient {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	return client.NewAdminClient(server, token)
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}
