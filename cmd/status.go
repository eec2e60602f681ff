package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	sessionrender "github.com/bnema/x402-pay-cli/internal/adapters/render/session"
	"github.com/bnema/x402-pay-cli/internal/application"
	"github.com/bnema/x402-pay-cli/internal/domain"
)

func newStatusCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch billing status and show the spending snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, app, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func runStatus(cmd *cobra.Command, app *app, asJSON bool) error {
	billing, err := app.facilitator.Status(cmd.Context(), app.userID)
	if err != nil {
		return err
	}

	snap := application.Snapshot{
		ConnectionStatus: domain.StatusDisconnected,
		Authenticated:    billing.Authenticated,
		SessionCost:      decimal.Zero,
		TotalSpent:       decimal.Zero,
	}
	if billing.TotalPaid.Valid {
		snap.TotalSpent = billing.TotalPaid.Decimal
	}

	return writeSnapshotOutput(cmd, app, snap, asJSON)
}

func writeSnapshotOutput(cmd *cobra.Command, app *app, snap application.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	rendered, err := app.renderer(snap, sessionrender.RenderOptions{Now: app.clock.Now()})
	if err != nil {
		return fmt.Errorf("render session snapshot: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
