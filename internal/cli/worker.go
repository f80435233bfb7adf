package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/warden/internal/tracing"
	"github.com/example/warden/internal/version"
	"github.com/example/warden/internal/wire"
)

// WorkerCmd returns the worker command
func WorkerCmd() *cobra.Command {
	var traceFile string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the job workers and the background sweeper",
		Long: `Run the async job workers and the background sweeper.

Workers claim EXECUTE_DECISION and ADVANCE_PLAYBOOK_STEP jobs; the sweeper
handles SLA escalation, wait-step timeouts, and stalled-run detection.
Multiple worker processes can run against the same database; the job claim
is atomic.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tracing.Init("warden-worker", version.String(), traceFile); err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("warden worker pool starting (%d workers)\n", wire.Config().Workers)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return wire.WorkerPool().Run(ctx) })
			g.Go(func() error { return wire.Sweeper().Run(ctx) })
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&traceFile, "trace-file", "", "write trace spans to a file instead of stdout")
	return cmd
}

// SweepCmd returns the sweep command
func SweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep pass (SLA, wait timeouts, stalled runs)",
		RunE: func(cmd *cobra.Command, args []string) error {
			wire.Sweeper().Sweep(context.Background())
			fmt.Println("✓ Sweep pass complete")
			return nil
		},
	}
}
