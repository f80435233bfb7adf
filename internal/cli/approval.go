package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// ApprovalCmd returns the approval command
func ApprovalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approval",
		Short: "Manage approval assignments",
	}

	cmd.AddCommand(approvalListCmd())
	cmd.AddCommand(approvalAckCmd())
	cmd.AddCommand(approvalShowCmd())

	return cmd
}

func approvalListCmd() *cobra.Command {
	var org, reviewer, status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			assignments, err := wire.ApprovalService().ListAssignments(context.Background(), primary.AssignmentFilters{
				OrganizationID: org,
				ReviewerID:     reviewer,
				Status:         status,
				Limit:          limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list assignments: %w", err)
			}

			if len(assignments) == 0 {
				fmt.Println("No assignments found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tPROPOSAL\tREVIEWER\tSTATUS\tSLA DUE")
			fmt.Fprintln(w, "--\t--------\t--------\t------\t-------")
			for _, a := range assignments {
				reviewer := a.ReviewerID
				if a.EscalatedToUser != "" {
					reviewer = a.EscalatedToUser + " (escalated)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.ProposalID, reviewer, assignmentStatusColor(a.Status),
					a.SLADueAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "filter by reviewer")
	cmd.Flags().StringVar(&status, "status", "", "filter by status: PENDING, ACKED, DONE, or EXPIRED")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum assignments to show")
	return cmd
}

func approvalAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack [assignment-id]",
		Short: "Acknowledge an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.ApprovalService().AckAssignment(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to ack assignment: %w", err)
			}
			fmt.Printf("✓ Acknowledged assignment %s\n", args[0])
			return nil
		},
	}
}

func approvalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [assignment-id]",
		Short: "Show assignment details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := wire.ApprovalService().GetAssignment(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get assignment: %w", err)
			}

			fmt.Printf("Assignment: %s\n", a.ID)
			fmt.Printf("  Proposal: %s\n", a.ProposalID)
			fmt.Printf("  Reviewer: %s\n", a.ReviewerID)
			fmt.Printf("  Status:   %s\n", assignmentStatusColor(a.Status))
			fmt.Printf("  SLA due:  %s\n", a.SLADueAt.Format("2006-01-02 15:04:05"))
			if a.AckedAt != nil {
				fmt.Printf("  Acked:    %s\n", a.AckedAt.Format("2006-01-02 15:04:05"))
			}
			if a.EscalatedToUser != "" {
				fmt.Printf("  Escalated to %s at %s (%s)\n",
					a.EscalatedToUser, a.EscalatedAt.Format("2006-01-02 15:04:05"), a.EscalationReason)
			}
			return nil
		},
	}
}

func assignmentStatusColor(status string) string {
	switch status {
	case models.AssignmentDone:
		return color.New(color.FgGreen).Sprint(status)
	case models.AssignmentExpired:
		return color.New(color.FgRed).Sprint(status)
	case models.AssignmentPending:
		return color.New(color.FgYellow).Sprint(status)
	default:
		return status
	}
}
