package cmd

import (
	"errors"
	"fmt"

	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSessionCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"status"},
		Short:   "Show the stored play",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.logTo(cmd.ErrOrStderr())

			wired, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer wired.close()

			session, err := wired.workflow.Restore(cmd.Context())
			switch {
			case errors.Is(err, domain.ErrNoSession):
				return writeSessionOutput(cmd, app, nil, wired.degraded, asJSON, nil)
			case err != nil:
				return err
			}
			return writeSessionOutput(cmd, app, &session, wired.degraded, asJSON, nil)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAckCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge a finished play and free the slot for a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app.logTo(cmd.ErrOrStderr())

			wired, err := app.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer wired.close()

			session, err := wired.workflow.Restore(cmd.Context())
			if err != nil {
				return explainError(err, false)
			}
			if err := wired.workflow.Acknowledge(cmd.Context()); err != nil {
				return explainError(err, session.Active())
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Session %s (%s) cleared.\n", session.ID, session.Status)
			return err
		},
	}
}
