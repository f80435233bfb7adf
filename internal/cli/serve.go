package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/warden/internal/api"
	"github.com/example/warden/internal/tracing"
	"github.com/example/warden/internal/version"
	"github.com/example/warden/internal/wire"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	var addr string
	var traceFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the governance HTTP API",
		Long: `Run the warden HTTP API.

Serves proposal intake, decision recording, playbook triggers, and the
notification outbox. Run workers separately (warden worker) so API latency
never depends on job throughput.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := tracing.Init("warden", version.String(), traceFile); err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}

			cfg := wire.Config()
			listenAddr := addr
			if listenAddr == "" {
				listenAddr = cfg.HTTPAddr
			}

			server := &http.Server{
				Addr:              listenAddr,
				Handler:           api.NewRouter(wire.APIHandler()),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("warden listening on %s\n", listenAddr)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("failed to shut down cleanly: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http_addr from config)")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "write trace spans to a file instead of stdout")
	return cmd
}
