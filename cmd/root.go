package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gs",
		Short:         "GrowScratch CLI (gs): play Telegram scratch cards from the terminal",
		Long:          "gs pays for a GrowScratch scratch card with Telegram Stars or TON, waits for the payment, reveals the server-issued result and mints the prize NFT. An interrupted play is resumed with gs resume.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newPlayCmd(app),
		newResumeCmd(app),
		newSessionCmd(app),
		newAckCmd(app),
		newPrizesCmd(app),
		newSandboxCmd(app),
		newConfigCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
	)

	return rootCmd
}
