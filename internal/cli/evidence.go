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

// EvidenceCmd returns the evidence command
func EvidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Manage the evidence and reasoning ledger",
	}

	cmd.AddCommand(evidenceAddCmd())
	cmd.AddCommand(evidenceLinkCmd())
	cmd.AddCommand(evidenceLinksCmd())
	cmd.AddCommand(evidenceReasoningCmd())

	return cmd
}

func evidenceAddCmd() *cobra.Command {
	var org, kind, content string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store an evidence object",
		Long: `Store a redacted evidence object. Content is hashed on insert;
the ledger is append-only.

Example:
  warden evidence add --org org-001 --kind LOG_SNIPPET --content "disk 97% full on db-3"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := wire.EvidenceService().AddEvidence(context.Background(), primary.AddEvidenceRequest{
				OrganizationID: org,
				Kind:           kind,
				Content:        content,
			})
			if err != nil {
				return fmt.Errorf("failed to add evidence: %w", err)
			}
			fmt.Printf("✓ Stored evidence %s (sha256 %s)\n", obj.ID, obj.SHA256[:12])
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&kind, "kind", "", "evidence kind, e.g. LOG_SNIPPET or METRIC (required)")
	cmd.Flags().StringVar(&content, "content", "", "redacted content (required)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func evidenceLinkCmd() *cobra.Command {
	var fromType, fromID, note string
	var weight float64

	cmd := &cobra.Command{
		Use:   "link [evidence-id]",
		Short: "Link evidence to a governance record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := wire.EvidenceService().LinkEvidence(context.Background(), primary.LinkEvidenceRequest{
				FromType:   fromType,
				FromID:     fromID,
				EvidenceID: args[0],
				Weight:     weight,
				Note:       note,
			})
			if err != nil {
				return fmt.Errorf("failed to link evidence: %w", err)
			}
			fmt.Printf("✓ Linked %s -> %s %s (%s)\n", args[0], link.FromType, link.FromID, link.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromType, "from-type", "", "record type: PROPOSAL, DECISION, EXECUTION, or RUN_STEP (required)")
	cmd.Flags().StringVar(&fromID, "from-id", "", "record id (required)")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "link weight")
	cmd.Flags().StringVar(&note, "note", "", "optional note")
	_ = cmd.MarkFlagRequired("from-type")
	_ = cmd.MarkFlagRequired("from-id")
	return cmd
}

func evidenceLinksCmd() *cobra.Command {
	var fromType, fromID string

	cmd := &cobra.Command{
		Use:   "links",
		Short: "List evidence linked from a governance record",
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := wire.EvidenceService().ListLinks(context.Background(), fromType, fromID)
			if err != nil {
				return fmt.Errorf("failed to list links: %w", err)
			}

			if len(links) == 0 {
				fmt.Println("No evidence links found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tEVIDENCE\tWEIGHT\tNOTE")
			fmt.Fprintln(w, "--\t--------\t------\t----")
			for _, l := range links {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", l.ID, l.EvidenceID, l.Weight, orDash(l.Note))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&fromType, "from-type", "", "record type (required)")
	cmd.Flags().StringVar(&fromID, "from-id", "", "record id (required)")
	_ = cmd.MarkFlagRequired("from-type")
	_ = cmd.MarkFlagRequired("from-id")
	return cmd
}

func evidenceReasoningCmd() *cobra.Command {
	var entityType, entityID string
	var history bool

	cmd := &cobra.Command{
		Use:   "reasoning",
		Short: "Show the reasoning ledger for an entity",
		Long: `Show reasoning entries for an entity. The newest entry is
authoritative; older entries are the correction history.

Examples:
  warden evidence reasoning --type DECISION --id dec-123
  warden evidence reasoning --type DECISION --id dec-123 --history`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if history {
				entries, err := wire.EvidenceService().ListReasoning(context.Background(), entityType, entityID)
				if err != nil {
					return fmt.Errorf("failed to list reasoning: %w", err)
				}
				if len(entries) == 0 {
					fmt.Println("No reasoning entries found.")
					return nil
				}
				for i, e := range entries {
					marker := " "
					if i == len(entries)-1 {
						marker = "*"
					}
					fmt.Printf("%s %s [%.2f, %s] %s\n", marker, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Confidence, e.Model, e.Summary)
				}
				return nil
			}

			entry, err := wire.EvidenceService().LatestReasoning(context.Background(), entityType, entityID)
			if err != nil {
				return fmt.Errorf("failed to get reasoning: %w", err)
			}
			fmt.Printf("Entity:     %s %s\n", entry.EntityType, entry.EntityID)
			fmt.Printf("Summary:    %s\n", entry.Summary)
			fmt.Printf("Confidence: %.2f\n", entry.Confidence)
			fmt.Printf("Model:      %s\n", entry.Model)
			fmt.Printf("Recorded:   %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "entity type, e.g. DECISION (required)")
	cmd.Flags().StringVar(&entityID, "id", "", "entity id (required)")
	cmd.Flags().BoolVar(&history, "history", false, "show full correction history, oldest first")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
