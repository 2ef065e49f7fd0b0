package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bnema/growscratch-cli/internal/adapters/sandbox"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/spf13/cobra"
)

const sandboxShutdownTimeout = 5 * time.Second

func newSandboxCmd(app *app) *cobra.Command {
	var listen string
	var winRate float64
	var pendingPolls int
	var seed int64
	var paymentStatus string

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Run a local backend double for trying gs without real payments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.logTo(cmd.ErrOrStderr())

			server, err := sandbox.New(sandbox.Config{
				WinRate:       winRate,
				PendingPolls:  pendingPolls,
				Seed:          seed,
				PaymentStatus: ports.PaymentStatus(strings.ToUpper(paymentStatus)),
				Catalog:       app.cfg.Game.Prizes,
				Logger:        app.log,
			})
			if err != nil {
				return fmt.Errorf("configure sandbox: %w", err)
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := ln.Addr().String()
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Sandbox backend on http://%s\nPoint gs at it with GS_API_BASE_URL=http://%s\n", addr, addr); err != nil {
				_ = ln.Close()
				return err
			}

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.Serve(ln)
			}()

			select {
			case err := <-serveErr:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sandboxShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("shutdown sandbox: %w", err)
			}
			return <-serveErr
		},
	}

	cmd.Flags().StringVar(&listen, "listen", sandbox.DefaultListen, "Address to listen on")
	cmd.Flags().Float64Var(&winRate, "win-rate", app.cfg.Game.WinRate, "Probability that a play wins, between 0 and 1")
	cmd.Flags().IntVar(&pendingPolls, "pending-polls", sandbox.DefaultPendingPolls, "Verification polls answered PENDING before a payment settles")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for results (0 picks one)")
	cmd.Flags().StringVar(&paymentStatus, "payment-status", string(ports.PaymentConfirmed), "How payments settle: CONFIRMED, EXPIRED or REJECTED")

	return cmd
}
