package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/converso-labs/chatbridge/internal/bridgectl/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service readiness",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := adminClient(cmd).Ready()
		if err != nil {
			return fmt.Errorf("service not reachable or not ready: %w", err)
		}

		switch outputFormat(cmd) {
		case "json":
			return output.JSON(resp)
		case "yaml":
			return output.YAML(resp)
		}

		output.Info("Status: %s", resp.Status)
		if len(resp.Dependencies) > 0 {
			table := output.NewTable([]string{"Dependency", "State"})
			for name, state := range resp.Dependencies {
				table.AddRow([]string{name, state})
			}
			table.Render()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
