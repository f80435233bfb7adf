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

// JobCmd returns the job command
func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect the async job registry",
	}

	cmd.AddCommand(jobListCmd())
	cmd.AddCommand(jobShowCmd())

	return cmd
}

func jobListCmd() *cobra.Command {
	var org, jobType, status, correlation string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List async jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := wire.JobService().ListJobs(context.Background(), primary.JobFilters{
				OrganizationID: org,
				Type:           jobType,
				Status:         status,
				CorrelationID:  correlation,
				Limit:          limit,
			})
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}

			if len(jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tATTEMPTS\tSCHEDULED")
			fmt.Fprintln(w, "--\t----\t------\t--------\t---------")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
					j.ID, j.Type, jobStatusColor(j.Status), j.Attempts, j.MaxAttempts,
					j.ScheduledAt.Format("2006-01-02 15:04:05"))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "filter by organization")
	cmd.Flags().StringVar(&jobType, "type", "", "filter by job type")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&correlation, "correlation", "", "filter by correlation id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum jobs to show")
	return cmd
}

func jobShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [job-id]",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := wire.JobService().GetJob(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get job: %w", err)
			}

			fmt.Printf("Job: %s\n", j.ID)
			fmt.Printf("  Type:        %s\n", j.Type)
			fmt.Printf("  Entity:      %s\n", j.EntityID)
			fmt.Printf("  Status:      %s\n", jobStatusColor(j.Status))
			fmt.Printf("  Attempts:    %d/%d\n", j.Attempts, j.MaxAttempts)
			fmt.Printf("  Scheduled:   %s\n", j.ScheduledAt.Format("2006-01-02 15:04:05"))
			if j.CorrelationID != "" {
				fmt.Printf("  Correlation: %s\n", j.CorrelationID)
			}
			if j.ClaimedBy != "" {
				fmt.Printf("  Claimed by:  %s\n", j.ClaimedBy)
			}
			if j.LastError != "" {
				fmt.Printf("  Last error:  %s\n", j.LastError)
			}
			return nil
		},
	}
}

func jobStatusColor(status string) string {
	switch status {
	case models.JobSuccess:
		return color.New(color.FgGreen).Sprint(status)
	case models.JobFailed, models.JobDeadLetter:
		return color.New(color.FgRed).Sprint(status)
	case models.JobRunning:
		return color.New(color.FgCyan).Sprint(status)
	default:
		return status
	}
}
