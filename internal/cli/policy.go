package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// PolicyCmd returns the policy command
func PolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage auto-decision policy rules",
	}

	cmd.AddCommand(policyAddCmd())
	cmd.AddCommand(policyListCmd())
	cmd.AddCommand(policySetEnabledCmd("enable", true))
	cmd.AddCommand(policySetEnabledCmd("disable", false))

	return cmd
}

func policyAddCmd() *cobra.Command {
	var org, scope, maxRisk, decision, reason, conditionsJSON string

	cmd := &cobra.Command{
		Use:   "add [action-type]",
		Short: "Add a policy rule",
		Long: `Add an auto-decision rule.

A rule matches proposals of its action type whose scope it covers and whose
risk does not exceed --max-risk. When every condition holds, the proposal is
decided automatically with the rule as the actor.

Examples:
  warden policy add send_email --org org-001 --max-risk LOW --decision APPROVED
  warden policy add refund --org org-001 --scope USER --max-risk MEDIUM --decision APPROVED \
    --conditions '[{"field":"amount","op":"LTE","value":100}]'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var conditions []models.Condition
			if conditionsJSON != "" {
				if err := json.Unmarshal([]byte(conditionsJSON), &conditions); err != nil {
					return fmt.Errorf("invalid --conditions: %w", err)
				}
			}

			rule, err := wire.PolicyService().AddRule(context.Background(), primary.AddRuleRequest{
				OrganizationID:     org,
				ActionType:         args[0],
				Scope:              scope,
				MaxRiskLevel:       maxRisk,
				Conditions:         conditions,
				AutoDecision:       decision,
				AutoDecisionReason: reason,
			})
			if err != nil {
				return fmt.Errorf("failed to add rule: %w", err)
			}

			fmt.Printf("✓ Added rule %s: %s %s up to %s\n", rule.ID, rule.AutoDecision, rule.ActionType, rule.MaxRiskLevel)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&scope, "scope", "ANY", "covered scope: ANY, USER, ORG, or INITIATIVE")
	cmd.Flags().StringVar(&maxRisk, "max-risk", "LOW", "highest risk the rule covers")
	cmd.Flags().StringVar(&decision, "decision", "APPROVED", "auto verdict: APPROVED or REJECTED")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded on auto-decisions")
	cmd.Flags().StringVar(&conditionsJSON, "conditions", "", "payload conditions as a JSON array")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func policyListCmd() *cobra.Command {
	var org string
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List policy rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := wire.PolicyService().ListRules(context.Background(), primary.PolicyRuleFilters{
				OrganizationID: org,
				EnabledOnly:    enabledOnly,
			})
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if len(rules) == 0 {
				fmt.Println("No policy rules found.")
				fmt.Println()
				fmt.Println("Add your first rule:")
				fmt.Println("  warden policy add log_message --org org-001 --max-risk LOW --decision APPROVED")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tACTION\tSCOPE\tMAX RISK\tVERDICT\tENABLED")
			fmt.Fprintln(w, "--\t------\t-----\t--------\t-------\t-------")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
					r.ID, r.ActionType, r.Scope, r.MaxRiskLevel, r.AutoDecision, r.Enabled)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "only enabled rules")
	return cmd
}

func policySetEnabledCmd(use string, enabled bool) *cobra.Command {
	short := "Enable a policy rule"
	if !enabled {
		short = "Disable a policy rule"
	}
	return &cobra.Command{
		Use:   use + " [rule-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.PolicyService().SetRuleEnabled(context.Background(), args[0], enabled); err != nil {
				return fmt.Errorf("failed to %s rule: %w", use, err)
			}
			fmt.Printf("✓ Rule %s %sd\n", args[0], use)
			return nil
		},
	}
}
