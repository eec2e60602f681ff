package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "xp",
		Short:         "x402 payment CLI (xp): pay for metered tool calls and track spend",
		Long:          "xp holds a live x402 payment session against a tool backend: it keeps the billing channel open, reacts to payment demands, submits signed payment witnesses, and tracks the session's spending ledger from the terminal.",
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

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		if verbose {
			app.logLevel.Set(slog.LevelDebug)
		}
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newStatusCmd(app),
		newPayCmd(app),
		newSessionCmd(app),
		newToolsCmd(app),
	)

	return rootCmd
}
