package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/growscratch-cli/internal/config"
	"github.com/bnema/growscratch-cli/internal/ports"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *app) *cobra.Command {
	var initData string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the Telegram WebApp init data gs authenticates with",
		Long:  "Stores the Telegram WebApp init data in pass, or in a private file when pass is unavailable. Without --init-data the value is read from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value := strings.TrimSpace(initData)
			if value == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no init data given: pass --init-data or pipe it on stdin")
				}
				value = strings.TrimSpace(line)
			}
			if err := config.ValidateInitData(value); err != nil {
				return err
			}

			store, err := app.credentialStore()
			if err != nil {
				return err
			}
			if err := store.Put(cmd.Context(), ports.TelegramInitDataKey, value); err != nil {
				return fmt.Errorf("store init data: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Telegram init data saved (%s backend).\n", app.cfg.Credentials.Backend)
			return err
		},
	}

	cmd.Flags().StringVar(&initData, "init-data", "", "Telegram WebApp init data string")
	return cmd
}

func newLogoutCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Telegram init data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := app.credentialStore()
			if err != nil {
				return err
			}
			if err := store.Delete(cmd.Context(), ports.TelegramInitDataKey); err != nil {
				return fmt.Errorf("remove init data: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Telegram init data removed.")
			return err
		},
	}
}
