package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List priced tools",
		Long:  "List every tool in the price book with its quoted amount and settlement network.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(cmd, app)
		},
	}
}

func runTools(cmd *cobra.Command, app *app) error {
	tools := app.prices.Tools()
	if len(tools) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No tools priced. Add entries to ~/.xp/prices.toml.")
		return nil
	}

	now := app.clock.Now()
	for _, tool := range tools {
		req, err := app.prices.Requirement(tool, now)
		if err != nil {
			return fmt.Errorf("price %s: %w", tool, err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s %s\t%s\n",
			tool, req.Amount.String(), req.Currency, req.Network)
	}

	return nil
}
