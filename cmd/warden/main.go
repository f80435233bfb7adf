package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/cli"
	"github.com/example/warden/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "warden",
		Short:   "Warden - action governance and playbook orchestration",
		Version: version.String(),
		Long: `Warden governs proposed actions through policy evaluation, human
approval, and audited execution, and orchestrates multi-step playbook runs
where every action step passes through the same governance gate.`,
	}

	// Environment
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.DoctorCmd())

	// Daemons
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.WorkerCmd())
	rootCmd.AddCommand(cli.SweepCmd())

	// Governance
	rootCmd.AddCommand(cli.ProposalCmd())
	rootCmd.AddCommand(cli.DecisionCmd())
	rootCmd.AddCommand(cli.PolicyCmd())
	rootCmd.AddCommand(cli.ApprovalCmd())

	// Orchestration
	rootCmd.AddCommand(cli.PlaybookCmd())
	rootCmd.AddCommand(cli.JobCmd())

	// Ledger and delivery
	rootCmd.AddCommand(cli.EvidenceCmd())
	rootCmd.AddCommand(cli.OutboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
