package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunSpinner runs a Bubble Tea spinner while executing action. Messages
// logged through Logf while it runs become the spinner's status line. The UI
// exits when the action completes and returns the action's error. Quitting
// the UI cancels the context passed to action and waits for it to return.
func RunSpinner(ctx context.Context, title string, action func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logs := make(chan logEntry, 64)
	setActiveLogChannel(logs)
	defer clearActiveLogChannel()

	actionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newSpinnerModel(title, logs, cancel)
	p := tea.NewProgram(m, tea.WithContext(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Send(actionDoneMsg{err: action(actionCtx)})
	}()

	final, err := p.Run()
	cancel()
	<-done
	if err != nil {
		return err
	}
	return final.(*spinnerModel).err
}

type actionDoneMsg struct{ err error }

type logMsg logEntry

type spinnerModel struct {
	title  string
	status string
	logs   chan logEntry
	cancel context.CancelFunc
	spin   spinner.Model
	done   bool
	err    error
	style  lipgloss.Style
	dim    lipgloss.Style
}

func newSpinnerModel(title string, logs chan logEntry, cancel context.CancelFunc) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &spinnerModel{
		title:  title,
		logs:   logs,
		cancel: cancel,
		spin:   s,
		style:  lipgloss.NewStyle().Padding(0, 1),
		dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, waitForLog(m.logs))
}

func waitForLog(logs chan logEntry) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs)
	}
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			m.err = fmt.Errorf("operation canceled")
			m.done = true
			return m, tea.Quit
		}
	case actionDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case logMsg:
		m.status = msg.message
		return m, waitForLog(m.logs)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return m.style.Render("✗ " + m.title + " (" + m.err.Error() + ")\n")
		}
		return m.style.Render("✓ " + m.title + "\n")
	}
	line := m.spin.View() + " " + m.title
	if m.status != "" {
		line += " " + m.dim.Render(m.status)
	}
	return m.style.Render(line)
}
