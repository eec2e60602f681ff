package session

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/x402-pay-cli/internal/application"
	"github.com/bnema/x402-pay-cli/internal/domain"
)

type RenderOptions struct {
	// Now anchors the expiry countdown and relative timestamps. When
	// zero, expiries are shown as absolute times instead.
	Now time.Time
}

// View renders a snapshot to styled text without running a program.
// The live watch TUI calls this directly on every frame.
func View(snap application.Snapshot, opts RenderOptions) string {
	return renderView(snap, opts, newStyles())
}

func renderView(snap application.Snapshot, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("x402 payment session"),
		statusLine(snap, s),
		totalsLine(snap, s),
	}

	if snap.CurrentRequirement != nil {
		lines = append(lines, s.section.Render(renderDemand(*snap.CurrentRequirement, opts, s)))
	}
	if snap.PendingAttempt != nil {
		lines = append(lines, s.section.Render(pendingLine(*snap.PendingAttempt, s)))
	}

	lines = append(lines, s.section.Render(renderHistory(snap.RecentTransactions, s)))

	if snap.LastError != "" {
		lines = append(lines, s.section.Render(s.warning.Render("last error: "+snap.LastError)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusLine(snap application.Snapshot, s styles) string {
	parts := []string{
		s.header.Render("status:"),
		" ",
		statusBadge(snap.ConnectionStatus, s),
	}
	if snap.Authenticated {
		parts = append(parts, s.meta.Render(" (authenticated)"))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func statusBadge(status domain.ConnectionStatus, s styles) string {
	switch status {
	case domain.StatusConnected:
		return s.connected.Render("connected")
	case domain.StatusConnecting:
		return s.connecting.Render("connecting")
	case domain.StatusPaymentRequired:
		return s.demand.Render("payment required")
	default:
		return s.disconnected.Render("disconnected")
	}
}

func totalsLine(snap application.Snapshot, s styles) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.demandKey.Render("session:"),
		" ",
		s.amount.Render(snap.SessionCost.String()),
		s.meta.Render("  ·  "),
		s.demandKey.Render("lifetime:"),
		" ",
		s.amount.Render(snap.TotalSpent.String()),
	)
}

func renderDemand(req domain.PaymentRequirement, opts RenderOptions, s styles) string {
	parts := []string{
		s.demand.Render(fmt.Sprintf("Payment required: %s %s on %s", req.Amount.String(), req.Currency, req.Network)),
		detailLine("pay to", req.Address, s),
	}
	if req.Resource != "" {
		parts = append(parts, detailLine("tool", req.Resource, s))
	}
	if req.Memo != "" {
		parts = append(parts, detailLine("memo", req.Memo, s))
	}
	parts = append(parts, expiryLine(req, opts, s))

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func detailLine(key, value string, s styles) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.demandKey.Render("  "+key+": "),
		s.detail.Render(value),
	)
}

func expiryLine(req domain.PaymentRequirement, opts RenderOptions, s styles) string {
	label := s.demandKey.Render("  expires: ")
	if !req.HasExpiry() {
		return label + s.meta.Render("never")
	}
	if opts.Now.IsZero() {
		return label + s.detail.Render(req.ExpiresAt.Format(time.RFC3339))
	}
	if req.Expired(opts.Now) {
		return label + s.warning.Render("expired")
	}

	remaining := req.ExpiresIn(opts.Now).Round(time.Second)
	if remaining < time.Second {
		remaining = time.Second
	}

	return label + s.countdown.Render("in "+remaining.String())
}

func pendingLine(rec domain.UsageRecord, s styles) string {
	label := rec.Tool
	if label == "" {
		label = "payment"
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.pending.Render("~ "),
		s.detail.Render(fmt.Sprintf("submitting %s for %s, awaiting settlement", rec.Cost.String(), label)),
	)
}

func renderHistory(records []domain.UsageRecord, s styles) string {
	header := s.header.Render(fmt.Sprintf("recent payments: %d", len(records)))
	if len(records) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, s.empty.Render("No payments settled this session."))
	}

	parts := make([]string, 0, len(records)+1)
	parts = append(parts, header)
	for _, rec := range records {
		parts = append(parts, recordLine(rec, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func recordLine(rec domain.UsageRecord, s styles) string {
	glyph := statusGlyph(rec.Status, s)
	tool := rec.Tool
	if tool == "" {
		tool = "unknown tool"
	}

	line := lipgloss.JoinHorizontal(
		lipgloss.Top,
		glyph,
		" ",
		s.amount.Render(rec.Cost.String()),
		"  ",
		s.detail.Render(tool),
	)
	if rec.TxHash != "" {
		line += s.meta.Render("  tx " + rec.TxHash)
	}
	if !rec.Timestamp.IsZero() {
		line += s.meta.Render("  " + rec.Timestamp.Format("15:04:05"))
	}

	return line
}

func statusGlyph(status domain.RecordStatus, s styles) string {
	switch status {
	case domain.RecordStatusConfirmed:
		return s.confirmed.Render("+")
	case domain.RecordStatusFailed:
		return s.failed.Render("x")
	default:
		return s.pending.Render("~")
	}
}
