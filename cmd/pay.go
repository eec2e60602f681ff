package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/x402-pay-cli/internal/application"
)

const settlementPollInterval = 100 * time.Millisecond

func newPayCmd(app *app) *cobra.Command {
	var tool string
	var wait time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay for a tool call priced in the local price book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPay(cmd, app, tool, wait, asJSON)
		},
	}

	cmd.Flags().StringVar(&tool, "tool", "", "Tool name from the price book")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the settlement event (0: return after acceptance)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	_ = cmd.MarkFlagRequired("tool")

	return cmd
}

func runPay(cmd *cobra.Command, app *app, tool string, wait time.Duration, asJSON bool) error {
	req, err := app.prices.Requirement(tool, app.clock.Now())
	if err != nil {
		return err
	}

	session, err := app.newSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := session.Open(cmd.Context(), app.userID); err != nil {
		return err
	}

	label := fmt.Sprintf("Paying %s %s for %s...", req.Amount.String(), req.Currency, tool)
	pay := func(ctx context.Context) error {
		_, err := session.MakePayment(ctx, &req)
		return err
	}
	if err := runPaySpinner(cmd.Context(), cmd.ErrOrStderr(), label, pay); err != nil {
		return err
	}

	if wait > 0 {
		settle := func(ctx context.Context) error {
			return waitForSettlement(ctx, session, wait)
		}
		if err := runPaySpinner(cmd.Context(), cmd.ErrOrStderr(), "Waiting for settlement...", settle); err != nil {
			return err
		}
	}

	return writeSnapshotOutput(cmd, app, session.Snapshot(), asJSON)
}

// waitForSettlement polls the session until a settlement lands in the
// ledger. The payment is already accepted at this point; running out of
// time is reported, not fatal to the backend's settlement.
func waitForSettlement(ctx context.Context, session *application.Coordinator, wait time.Duration) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(settlementPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("no settlement event within %s (the payment may still settle)", wait)
		case <-ticker.C:
			if session.Snapshot().LastPayment != nil {
				return nil
			}
		}
	}
}
