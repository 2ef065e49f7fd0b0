package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/bnema/growscratch-cli/internal/application"
	"github.com/bnema/growscratch-cli/internal/domain"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type phaseChangedMsg application.PhaseChange

type workflowDoneMsg struct {
	session domain.Session
	err     error
}

type playSpinnerModel struct {
	spinner spinner.Model
	label   string
	run     tea.Cmd
	session domain.Session
	err     error
	done    bool
}

func newPlaySpinnerModel(label string, run tea.Cmd) playSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return playSpinnerModel{
		spinner: s,
		label:   label,
		run:     run,
	}
}

func (m playSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run)
}

func (m playSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case phaseChangedMsg:
		m.label = phaseLabel(application.PhaseChange(msg))
		return m, nil
	case workflowDoneMsg:
		m.done = true
		m.session = msg.session
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m playSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runPlaySpinner drives run while a spinner follows the workflow's phase
// changes. Interrupts are left to the caller's context.
func runPlaySpinner(ctx context.Context, output io.Writer, workflow *application.Workflow, run func(context.Context) (domain.Session, error)) (domain.Session, error) {
	runCmd := func() tea.Msg {
		session, err := run(ctx)
		return workflowDoneMsg{session: session, err: err}
	}

	p := tea.NewProgram(
		newPlaySpinnerModel("Preparing play...", runCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithoutSignalHandler(),
	)
	workflow.OnPhaseChange(func(change application.PhaseChange) {
		p.Send(phaseChangedMsg(change))
	})

	finalModel, err := p.Run()
	if err != nil {
		return domain.Session{}, err
	}

	result, ok := finalModel.(playSpinnerModel)
	if !ok {
		return domain.Session{}, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.session, result.err
}

func phaseLabel(change application.PhaseChange) string {
	var label string
	switch change.Status {
	case domain.StatusCreated:
		label = "Creating invoice..."
	case domain.StatusAwaitingPayment:
		label = "Waiting for payment confirmation..."
		if change.Pending {
			label = "Payment not confirmed yet"
		}
	case domain.StatusPaid:
		label = "Payment confirmed, scratching your card..."
	case domain.StatusResultReady:
		label = "Result ready"
	case domain.StatusMinting:
		label = "Minting your prize NFT..."
		if change.Err != nil {
			label = "Mint did not go through yet"
		}
	case domain.StatusCompleted:
		label = "Done"
	case domain.StatusFailed:
		label = "Play failed"
	default:
		label = string(change.Status)
	}
	if change.Degraded {
		label += " (session not persisted)"
	}
	return label
}
