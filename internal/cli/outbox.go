package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// OutboxCmd returns the outbox command
func OutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and acknowledge notification outbox entries",
	}

	cmd.AddCommand(outboxListCmd())
	cmd.AddCommand(outboxAckCmd())

	return cmd
}

func outboxListCmd() *cobra.Command {
	var org, topic, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List outbox entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := wire.OutboxService().ListEntries(context.Background(), primary.OutboxFilters{
				OrganizationID: org,
				Topic:          topic,
				Status:         status,
				Limit:          limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list outbox entries: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println("No outbox entries found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTOPIC\tSTATUS\tCREATED\tERROR")
			fmt.Fprintln(w, "--\t-----\t------\t-------\t-----")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Topic, e.Status, e.CreatedAt.Format("2006-01-02 15:04"), orDash(e.LastError))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&topic, "topic", "", "filter by topic")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: QUEUED, SENT, or FAILED")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

func outboxAckCmd() *cobra.Command {
	var status, deliveryError string

	cmd := &cobra.Command{
		Use:   "ack [entry-id]",
		Short: "Acknowledge a delivery attempt",
		Long: `Acknowledge an outbox entry after a delivery attempt.

Examples:
  warden outbox ack obx-123 --status SENT
  warden outbox ack obx-123 --status FAILED --error "smtp timeout"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.OutboxService().Ack(context.Background(), args[0], status, deliveryError); err != nil {
				return fmt.Errorf("failed to ack entry: %w", err)
			}
			fmt.Printf("✓ Entry %s marked %s\n", args[0], status)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "SENT", "delivery outcome: SENT or FAILED")
	cmd.Flags().StringVar(&deliveryError, "error", "", "delivery error detail for FAILED")
	return cmd
}
