package cmd

import (
	"github.com/spf13/cobra"

	"github.com/converso-labs/chatbridge/internal/bridgectl/output"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Inspect webhook deliveries",
}

var webhookStatusCmd = &cobra.Command{
	Use:   "status <webhook-id>",
	Short: "Check whether a delivery has been accepted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := adminClient(cmd).WebhookStatus(args[0])
		if err != nil {
			return err
		}

		switch outputFormat(cmd) {
		case "json":
			return output.JSON(resp)
		case "yaml":
			return output.YAML(resp)
		}

		table := output.NewTable([]string{"Webhook ID", "Processed", "Status"})
		processed := "no"
		if resp.Processed {
			processed = "yes"
		}
		table.AddRow([]string{args[0], processed, resp.Status})
		table.Render()
		return nil
	},
}

func init() {
	webhookCmd.AddCommand(webhookStatusCmd)
	rootCmd.AddCommand(webhookCmd)
}
