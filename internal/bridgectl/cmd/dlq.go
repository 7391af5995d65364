package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/converso-labs/chatbridge/internal/bridgectl/output"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead-letter queue management",
	Long:  "Inspect, requeue, and purge dead-lettered webhook jobs",
}

var dlqListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List dead-lettered jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		resp, err := adminClient(cmd).ListDeadLetters(limit)
		if err != nil {
			return fmt.Errorf("failed to list dead letters: %w", err)
		}

		switch outputFormat(cmd) {
		case "json":
			return output.JSON(resp.DeadLetters)
		case "yaml":
			return output.YAML(resp.DeadLetters)
		}

		if len(resp.DeadLetters) == 0 {
			output.Info("No dead letters")
			return nil
		}

		table := output.NewTable([]string{"ID", "Event Type", "Queue", "Attempts", "Reason", "Created At", "Requeued"})
		for _, dl := range resp.DeadLetters {
			requeued := ""
			if dl.RequeuedAt != nil {
				requeued = dl.RequeuedAt.Format("2006-01-02 15:04")
			}
			table.AddRow([]string{
				dl.ID,
				string(dl.EventType),
				string(dl.Queue),
				fmt.Sprintf("%d", dl.Attempts),
				dl.Reason,
				dl.CreatedAt.Format("2006-01-02 15:04"),
				requeued,
			})
		}
		table.Render()
		return nil
	},
}

var dlqShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one dead letter including its payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dl, err := adminClient(cmd).GetDeadLetter(args[0])
		if err != nil {
			return fmt.Errorf("failed to fetch dead letter: %w", err)
		}
		if outputFormat(cmd) == "yaml" {
			return output.YAML(dl)
		}
		return output.JSON(dl)
	},
}

var dlqRequeueCmd = &cobra.Command{
	Use:   "requeue <id>",
	Short: "Push a dead-lettered job back onto its queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := adminClient(cmd).RequeueDeadLetter(args[0]); err != nil {
			return fmt.Errorf("failed to requeue: %w", err)
		}
		output.Info("Requeued %s", args[0])
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all dead letters",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("purge deletes all dead letters; re-run with --yes to confirm")
		}
		n, err := adminClient(cmd).PurgeDeadLetters()
		if err != nil {
			return fmt.Errorf("failed to purge: %w", err)
		}
		output.Info("Purged %d dead letters", n)
		return nil
	},
}

func init() {
	dlqListCmd.Flags().Int("limit", 100, "maximum rows to return")
	dlqPurgeCmd.Flags().Bool("yes", false, "confirm the purge")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqShowCmd)
	dlqCmd.AddCommand(dlqRequeueCmd)
	dlqCmd.AddCommand(dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}
