package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/warden/internal/models"
	"github.com/example/warden/internal/ports/primary"
	"github.com/example/warden/internal/wire"
)

// templateFile is the YAML shape accepted by `playbook create -f`.
type templateFile struct {
	Organization string             `yaml:"organization"`
	Key          string             `yaml:"key"`
	Steps        []templateFileStep `yaml:"steps"`
}

type templateFileStep struct {
	Name            string          `yaml:"name"`
	Type            string          `yaml:"type"`
	Action          string          `yaml:"action,omitempty"`
	Params          map[string]any  `yaml:"params,omitempty"`
	Next            string          `yaml:"next,omitempty"`
	Branches        []branchFileDef `yaml:"branches,omitempty"`
	WaitForPrevious *bool           `yaml:"wait_for_previous,omitempty"`
	TimeoutSeconds  int             `yaml:"timeout_seconds,omitempty"`
}

type branchFileDef struct {
	When []conditionFileDef `yaml:"when"`
	Next string             `yaml:"next"`
}

type conditionFileDef struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value,omitempty"`
}

// PlaybookCmd returns the playbook command
func PlaybookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbook",
		Short: "Manage playbook templates and runs",
	}

	cmd.AddCommand(playbookCreateCmd())
	cmd.AddCommand(playbookPublishCmd())
	cmd.AddCommand(playbookCloneCmd())
	cmd.AddCommand(playbookShowCmd())
	cmd.AddCommand(playbookTriggerCmd())
	cmd.AddCommand(runShowCmd())
	cmd.AddCommand(runSignalCmd())
	cmd.AddCommand(runCancelCmd())

	return cmd
}

func playbookCreateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a DRAFT template from a YAML file",
		Long: `Create a playbook template from a YAML definition.

The template starts as a DRAFT and cannot be triggered until published.
Steps are named; "next" and branch targets reference step names.

Example definition:
  organization: org-001
  key: incident-response
  steps:
    - name: diagnose
      type: ACTION
      action: run_diagnostics
      branches:
        - when: [{field: "diagnose.status", op: EQ, value: SUCCESS}]
          next: notify
      next: page
    - name: notify
      type: ACTION
      action: send_email
    - name: page
      type: ACTION
      action: page_oncall`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read template file: %w", err)
			}

			var def templateFile
			if err := yaml.Unmarshal(raw, &def); err != nil {
				return fmt.Errorf("failed to parse template file: %w", err)
			}

			tmpl, err := wire.PlaybookService().CreateTemplate(context.Background(), buildTemplateRequest(def))
			if err != nil {
				return fmt.Errorf("failed to create template: %w", err)
			}

			fmt.Printf("✓ Created template %s (%s v%d, %s)\n", tmpl.ID, tmpl.Key, tmpl.Version, tmpl.Status)
			fmt.Println()
			fmt.Println("Publish it to make it triggerable:")
			fmt.Printf("  warden playbook publish %s\n", tmpl.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML template definition (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildTemplateRequest(def templateFile) primary.CreateTemplateRequest {
	req := primary.CreateTemplateRequest{
		OrganizationID: def.Organization,
		Key:            def.Key,
	}
	for _, s := range def.Steps {
		step := primary.StepDefinition{
			Name:            s.Name,
			StepType:        s.Type,
			ActionType:      s.Action,
			Params:          s.Params,
			Next:            s.Next,
			WaitForPrevious: s.WaitForPrevious,
			TimeoutSeconds:  s.TimeoutSeconds,
		}
		for _, b := range s.Branches {
			rule := primary.BranchRuleDef{Next: b.Next}
			for _, c := range b.When {
				rule.When = append(rule.When, models.Condition{Field: c.Field, Op: c.Op, Value: c.Value})
			}
			step.BranchRules = append(step.BranchRules, rule)
		}
		req.Steps = append(req.Steps, step)
	}
	return req
}

func playbookPublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish [template-id]",
		Short: "Publish a DRAFT template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.PlaybookService().PublishTemplate(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to publish template: %w", err)
			}
			fmt.Printf("✓ Published template %s\n", args[0])
			return nil
		},
	}
}

func playbookCloneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clone [template-id]",
		Short: "Clone a template into a new DRAFT version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clone, err := wire.PlaybookService().CloneTemplate(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to clone template: %w", err)
			}
			fmt.Printf("✓ Cloned into %s (%s v%d, %s)\n", clone.ID, clone.Key, clone.Version, clone.Status)
			return nil
		},
	}
}

func playbookShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [template-id]",
		Short: "Show a template and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, steps, err := wire.PlaybookService().GetTemplate(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get template: %w", err)
			}

			fmt.Printf("Template: %s\n", tmpl.ID)
			fmt.Printf("  Key:     %s\n", tmpl.Key)
			fmt.Printf("  Version: %d\n", tmpl.Version)
			fmt.Printf("  Status:  %s\n", templateStatusColor(tmpl.Status))
			fmt.Printf("  Org:     %s\n", tmpl.OrganizationID)
			if tmpl.ParentTemplateID != "" {
				fmt.Printf("  Parent:  %s\n", tmpl.ParentTemplateID)
			}
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ORDER\tNAME\tTYPE\tACTION\tBRANCHES\tTIMEOUT")
			fmt.Fprintln(w, "-----\t----\t----\t------\t--------\t-------")
			for _, s := range steps {
				timeout := "-"
				if s.TimeoutSeconds > 0 {
					timeout = fmt.Sprintf("%ds", s.TimeoutSeconds)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n",
					s.StepOrder, s.Name, s.StepType, orDash(s.ActionType), len(s.BranchRules), timeout)
			}
			w.Flush()
			return nil
		},
	}
}

func playbookTriggerCmd() *cobra.Command {
	var org, contextJSON string

	cmd := &cobra.Command{
		Use:   "trigger [template-key]",
		Short: "Trigger a run of the latest published template version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trigCtx, err := decodeJSONFlag(contextJSON)
			if err != nil {
				return fmt.Errorf("invalid --context: %w", err)
			}

			run, err := wire.PlaybookService().TriggerRun(context.Background(), primary.TriggerRunRequest{
				OrganizationID: org,
				TemplateKey:    args[0],
				TriggerContext: trigCtx,
			})
			if err != nil {
				return fmt.Errorf("failed to trigger run: %w", err)
			}

			fmt.Printf("✓ Triggered run %s (%s)\n", run.ID, run.Status)
			fmt.Println()
			fmt.Println("Watch it:")
			fmt.Printf("  warden playbook run %s\n", run.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "organization id (required)")
	cmd.Flags().StringVar(&contextJSON, "context", "", "trigger context as JSON")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func runShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [run-id]",
		Short: "Show a run and its traversed steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, steps, err := wire.PlaybookService().GetRun(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			fmt.Printf("Run: %s\n", run.ID)
			fmt.Printf("  Template: %s\n", run.TemplateID)
			fmt.Printf("  Status:   %s\n", runStatusColor(run.Status))
			if run.StartedAt != nil {
				fmt.Printf("  Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
			}
			if run.EndedAt != nil {
				fmt.Printf("  Ended:    %s\n", run.EndedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ORDER\tSTEP\tSTATUS\tPROPOSAL")
			fmt.Fprintln(w, "-----\t----\t------\t--------")
			for _, s := range steps {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.StepOrder, s.TemplateStepID, s.Status, orDash(s.ProposalID))
			}
			w.Flush()
			return nil
		},
	}
}

func runSignalCmd() *cobra.Command {
	var payloadJSON string

	cmd := &cobra.Command{
		Use:   "signal [run-id] [step-name]",
		Short: "Resume a waiting run step with an external event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := decodeJSONFlag(payloadJSON)
			if err != nil {
				return fmt.Errorf("invalid --payload: %w", err)
			}
			if err := wire.PlaybookService().Signal(context.Background(), args[0], args[1], payload); err != nil {
				return fmt.Errorf("failed to signal run: %w", err)
			}
			fmt.Printf("✓ Signalled %s on run %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadJSON, "payload", "", "signal payload as JSON")
	return cmd
}

func runCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [run-id]",
		Short: "Cancel a run and its queued work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wire.PlaybookService().CancelRun(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to cancel run: %w", err)
			}
			fmt.Printf("✓ Cancelled run %s\n", args[0])
			return nil
		},
	}
}

func templateStatusColor(status string) string {
	switch status {
	case models.TemplatePublished:
		return color.New(color.FgGreen).Sprint(status)
	case models.TemplateDraft:
		return color.New(color.FgYellow).Sprint(status)
	default:
		return status
	}
}

func runStatusColor(status string) string {
	switch status {
	case models.RunCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case models.RunFailed:
		return color.New(color.FgRed).Sprint(status)
	case models.RunRunning:
		return color.New(color.FgCyan).Sprint(status)
	default:
		return status
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
