package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/ctxutil"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// DecisionCmd returns the decision command
func DecisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decision",
		Short: "Record and inspect governance decisions",
	}

	cmd.AddCommand(decisionRecordCmd())
	cmd.AddCommand(decisionSupersedeCmd())
	cmd.AddCommand(decisionListCmd())

	return cmd
}

func decisionRecordCmd() *cobra.Command {
	var verdict, by, reason, modifiedJSON string

	cmd := &cobra.Command{
		Use:   "record [proposal-id]",
		Short: "Record a decision for a proposal",
		Long: `Record the decision for a pending proposal.

APPROVED and MODIFIED decisions enqueue execution; REJECTED decisions are
recorded and never executed. A MODIFIED decision requires --modified-payload.

Examples:
  warden decision record prop-1234 --verdict APPROVED --by user:alice
  warden decision record prop-1234 --verdict MODIFIED --by user:alice --modified-payload '{"to":"audit@example.com"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			modified, err := decodeJSONFlag(modifiedJSON)
			if err != nil {
				return fmt.Errorf("invalid --modified-payload: %w", err)
			}

			ctx := ctxutil.WithActorID(context.Background(), by)
			decision, err := wire.DecisionService().RecordDecision(ctx, primary.RecordDecisionRequest{
				ProposalID:      args[0],
				Decision:        verdict,
				DecidedBy:       by,
				Reason:          reason,
				ModifiedPayload: modified,
			})
			if err != nil {
				return fmt.Errorf("failed to record decision: %w", err)
			}

			fmt.Printf("✓ Recorded decision %s: %s by %s\n", decision.ID, decision.Decision, decision.DecidedBy)
			return nil
		},
	}

	cmd.Flags().StringVar(&verdict, "verdict", "", "APPROVED, REJECTED, or MODIFIED (required)")
	cmd.Flags().StringVar(&by, "by", "", "deciding actor, e.g. user:alice (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "free-form reason")
	cmd.Flags().StringVar(&modifiedJSON, "modified-payload", "", "replacement payload for MODIFIED verdicts")
	_ = cmd.MarkFlagRequired("verdict")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func decisionSupersedeCmd() *cobra.Command {
	var verdict, by, reason string

	cmd := &cobra.Command{
		Use:   "supersede [decision-id]",
		Short: "Correct a recorded decision with a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxutil.WithActorID(context.Background(), by)
			decision, err := wire.DecisionService().SupersedeDecision(ctx, args[0], primary.RecordDecisionRequest{
				Decision:  verdict,
				DecidedBy: by,
				Reason:    reason,
			})
			if err != nil {
				return fmt.Errorf("failed to supersede decision: %w", err)
			}

			fmt.Printf("✓ Decision %s superseded by %s (%s)\n", args[0], decision.ID, decision.Decision)
			return nil
		},
	}

	cmd.Flags().StringVar(&verdict, "verdict", "", "APPROVED, REJECTED, or MODIFIED (required)")
	cmd.Flags().StringVar(&by, "by", "", "deciding actor (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "free-form reason")
	_ = cmd.MarkFlagRequired("verdict")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func decisionListCmd() *cobra.Command {
	var org, proposalID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			decisions, err := wire.DecisionService().ListDecisions(context.Background(), primary.DecisionFilters{
				OrganizationID: org,
				ProposalID:     proposalID,
			})
			if err != nil {
				return fmt.Errorf("failed to list decisions: %w", err)
			}

			if len(decisions) == 0 {
				fmt.Println("No decisions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tPROPOSAL\tVERDICT\tBY\tCREATED")
			fmt.Fprintln(w, "--\t--------\t-------\t--\t-------")
			for _, d := range decisions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.ProposalID, d.Decision, d.DecidedBy, d.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&proposalID, "proposal", "", "filter by proposal")
	return cmd
}
