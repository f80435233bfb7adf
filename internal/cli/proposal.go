package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// ProposalCmd returns the proposal command
func ProposalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Manage action proposals",
		Long:  `Submit and inspect action proposals awaiting governance.`,
	}

	cmd.AddCommand(proposalCreateCmd())
	cmd.AddCommand(proposalShowCmd())
	cmd.AddCommand(proposalListCmd())

	return cmd
}

func proposalCreateCmd() *cobra.Command {
	var org, scope, risk, correlation, payloadJSON string

	cmd := &cobra.Command{
		Use:   "create [action-type]",
		Short: "Submit a new action proposal",
		Long: `Submit an action proposal for governance.

The policy engine runs synchronously: the proposal either comes back with an
auto-decision or with an approval assignment and an SLA deadline.

Examples:
  warden proposal create send_email --org org-001 --risk LOW --payload '{"to":"ops@example.com"}'
  warden proposal create wipe_disk --org org-001 --scope INITIATIVE --risk CRITICAL`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := decodeJSONFlag(payloadJSON)
			if err != nil {
				return fmt.Errorf("invalid --payload: %w", err)
			}

			resp, err := wire.ProposalService().CreateProposal(context.Background(), primary.CreateProposalRequest{
				OrganizationID: org,
				ActionType:     args[0],
				Scope:          scope,
				Payload:        payload,
				RiskLevel:      risk,
				CorrelationID:  correlation,
			})
			if err != nil {
				return fmt.Errorf("failed to create proposal: %w", err)
			}

			fmt.Printf("✓ Created proposal %s\n", resp.Proposal.ID)
			switch {
			case resp.Decision != nil:
				verdict := color.New(color.FgGreen).Sprint(resp.Decision.Decision)
				if resp.Decision.Decision == "REJECTED" {
					verdict = color.New(color.FgRed).Sprint(resp.Decision.Decision)
				}
				fmt.Printf("  Auto-decided %s by %s: %s\n", verdict, resp.Decision.DecidedBy, resp.Decision.Reason)
			case resp.Assignment != nil:
				fmt.Printf("  Awaiting approval by %s (SLA due %s)\n",
					resp.Assignment.ReviewerID, resp.Assignment.SLADueAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&scope, "scope", "ORG", "blast radius: USER, ORG, or INITIATIVE")
	cmd.Flags().StringVar(&risk, "risk", "MEDIUM", "risk level: LOW, MEDIUM, HIGH, or CRITICAL")
	cmd.Flags().StringVar(&correlation, "correlation", "", "correlation id for tracing")
	cmd.Flags().StringVar(&payloadJSON, "payload", "", "action payload as JSON")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func proposalShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [proposal-id]",
		Short: "Show proposal details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			proposal, err := wire.ProposalService().GetProposal(ctx, args[0])
			if err != nil {
				return fmt.Errorf("proposal not found: %w", err)
			}

			fmt.Printf("Proposal: %s\n", proposal.ID)
			fmt.Printf("Organization: %s\n", proposal.OrganizationID)
			fmt.Printf("Action: %s\n", proposal.ActionType)
			fmt.Printf("Scope: %s\n", proposal.Scope)
			fmt.Printf("Risk: %s\n", proposal.RiskLevel)
			if proposal.CorrelationID != "" {
				fmt.Printf("Correlation: %s\n", proposal.CorrelationID)
			}
			fmt.Printf("Created: %s\n", proposal.CreatedAt)

			decisions, err := wire.DecisionService().ListDecisions(ctx, primary.DecisionFilters{ProposalID: proposal.ID})
			if err != nil {
				return fmt.Errorf("failed to list decisions: %w", err)
			}
			for _, d := range decisions {
				superseded := ""
				if d.SupersededBy != "" {
					superseded = " (superseded)"
				}
				fmt.Printf("Decision: %s %s by %s%s\n", d.ID, d.Decision, d.DecidedBy, superseded)
			}
			return nil
		},
	}
}

func proposalListCmd() *cobra.Command {
	var org, actionType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			proposals, err := wire.ProposalService().ListProposals(context.Background(), primary.ProposalFilters{
				OrganizationID: org,
				ActionType:     actionType,
			})
			if err != nil {
				return fmt.Errorf("failed to list proposals: %w", err)
			}

			if len(proposals) == 0 {
				fmt.Println("No proposals found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tACTION\tSCOPE\tRISK\tCREATED")
			fmt.Fprintln(w, "--\t------\t-----\t----\t-------")
			for _, p := range proposals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.ActionType, p.Scope, p.RiskLevel, p.CreatedAt.Format("2006-01-02 15:04"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&actionType, "action", "", "filter by action type")
	return cmd
}

// decodeJSONFlag parses an optional JSON object flag.
func decodeJSONFlag(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
