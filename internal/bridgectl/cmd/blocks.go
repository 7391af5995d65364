package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/converso-labs/chatbridge/internal/bridgectl/output"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Anomaly IP block management",
	Long:  "List and clear IP addresses blocked by the anomaly detector",
}

var blocksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List currently blocked IPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := adminClient(cmd).ListBlocks()
		if err != nil {
			return fmt.Errorf("failed to list blocks: %w", err)
		}

		switch outputFormat(cmd) {
		case "json":
			return output.JSON(resp.BlockedIPs)
		case "yaml":
			return output.YAML(resp.BlockedIPs)
		}

		if len(resp.BlockedIPs) == 0 {
			output.Info("No active blocks")
			return nil
		}
		table := output.NewTable([]string{"Blocked IP"})
		for _, ip := range resp.BlockedIPs {
			table.AddRow([]string{ip})
		}
		table.Render()
		return nil
	},
}

var blocksClearCmd = &cobra.Command{
	Use:   "clear <ip>",
	Short: "Remove the block for an IP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := adminClient(cmd).RemoveBlock(args[0]); err != nil {
			return fmt.Errorf("failed to clear block: %w", err)
		}
		output.Info("Unblocked %s", args[0])
		return nil
	},
}

func init() {
	blocksCmd.AddCommand(blocksListCmd)
	blocksCmd.AddCommand(blocksClearCmd)
	rootCmd.AddCommand(blocksCmd)
}
