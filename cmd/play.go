package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/growscratch-cli/internal/application"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newPlayCmd(app *app) *cobra.Command {
	var useTON bool
	var wallet string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Buy a scratch card and play it to the end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			method := domain.PaymentMethodStars
			if useTON {
				method = domain.PaymentMethodTON
			}
			req := application.PlayRequest{Method: method, WalletAddress: wallet}

			return runWorkflow(cmd, app, asJSON, func(ctx context.Context, workflow *application.Workflow) (domain.Session, error) {
				return workflow.StartPlay(ctx, req)
			})
		},
	}

	cmd.Flags().BoolVar(&useTON, "ton", false, "Pay with TON instead of Telegram Stars")
	cmd.Flags().StringVar(&wallet, "wallet", "", "TON wallet address that receives a won NFT")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newResumeCmd(app *app) *cobra.Command {
	var wallet string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Continue the stored play from where it stopped",
		Long:  "resume polls a pending payment again, asks for the result of a paid play, or retries a mint that did not go through. A new invoice is never created for a stored play.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := application.ResumeRequest{WalletAddress: wallet}

			return runWorkflow(cmd, app, asJSON, func(ctx context.Context, workflow *application.Workflow) (domain.Session, error) {
				return workflow.Resume(ctx, req)
			})
		},
	}

	cmd.Flags().StringVar(&wallet, "wallet", "", "TON wallet address, when the play has none yet")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

// runWorkflow wires a workflow, runs one play operation under an interrupt
// aware context and prints the resulting session.
func runWorkflow(cmd *cobra.Command, app *app, asJSON bool, run func(context.Context, *application.Workflow) (domain.Session, error)) error {
	app.logTo(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wired, err := app.openSession(ctx)
	if err != nil {
		return err
	}
	defer wired.close()

	var session domain.Session
	var runErr error
	if asJSON {
		session, runErr = run(ctx, wired.workflow)
	} else {
		session, runErr = runPlaySpinner(ctx, cmd.ErrOrStderr(), wired.workflow, func(ctx context.Context) (domain.Session, error) {
			return run(ctx, wired.workflow)
		})
	}

	var shown *domain.Session
	if session.ID != "" {
		shown = &session
	}
	if err := writeSessionOutput(cmd, app, shown, wired.degraded, asJSON, runErr); err != nil {
		return err
	}
	return explainError(runErr, session.Active())
}
