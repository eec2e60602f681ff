package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	sessionrender "github.com/bnema/x402-pay-cli/internal/adapters/render/session"
	"github.com/bnema/x402-pay-cli/internal/application"
	"github.com/bnema/x402-pay-cli/internal/ports"
)

func newSessionCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Live payment session commands",
	}

	cmd.AddCommand(newSessionWatchCmd(app))

	return cmd
}

func newSessionWatchCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the live payment session and settle demands interactively",
		Long:  "Opens the realtime billing channel and redraws the session snapshot every second. When the backend demands a payment, press p to sign and submit it; q quits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessionWatch(cmd, app)
		},
	}
}

func runSessionWatch(cmd *cobra.Command, app *app) error {
	session, err := app.newSession()
	if err != nil {
		return err
	}
	defer func() { _ = session.Close() }()

	if err := session.Open(cmd.Context(), app.userID); err != nil {
		return err
	}

	p := tea.NewProgram(
		newWatchModel(session, app.clock),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)

	_, err = p.Run()
	return err
}

type watchTickMsg time.Time

type watchPaymentMsg struct {
	err error
}

type watchModel struct {
	session *application.Coordinator
	clock   ports.Clock
	paying  bool
}

func newWatchModel(session *application.Coordinator, clock ports.Clock) watchModel {
	return watchModel{
		session: session,
		clock:   clock,
	}
}

// watchTick drives the once-a-second redraw. Channel events mutate the
// session on their own goroutine; the tick only re-reads the snapshot.
func watchTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return watchTick()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			if m.paying || m.session.Snapshot().CurrentRequirement == nil {
				return m, nil
			}
			m.paying = true
			return m, m.payCurrent()
		}
		return m, nil
	case watchTickMsg:
		return m, watchTick()
	case watchPaymentMsg:
		m.paying = false
		return m, nil
	default:
		return m, nil
	}
}

// payCurrent settles the outstanding demand. Failures are recorded in
// the session snapshot, so the message only clears the in-flight flag.
func (m watchModel) payCurrent() tea.Cmd {
	session := m.session

	return func() tea.Msg {
		_, err := session.MakePayment(context.Background(), nil)
		return watchPaymentMsg{err: err}
	}
}

func (m watchModel) View() string {
	view := sessionrender.View(m.session.Snapshot(), sessionrender.RenderOptions{Now: m.clock.Now()})

	help := "p pay · q quit"
	if m.paying {
		help = "submitting payment... · q quit"
	}

	return fmt.Sprintf("%s\n\n%s\n", view, help)
}
