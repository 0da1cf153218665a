package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxLogLines = 8

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	stepStyle  = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

type stepMsg string
type doneMsg struct{ err error }

// TUI is a bubbletea-driven Reporter for the standalone CLI. It owns its
// own program and must be started with Run before Step/Done are called.
type TUI struct {
	title string
	prog  *tea.Program
}

// NewTUI starts a bubbletea program rendering a spinner and a scrolling
// tail of the last steps reported, under title.
func NewTUI(title string) *TUI {
	m := tuiModel{title: title, spinner: spinner.New(spinner.WithSpinner(spinner.Dot))}
	prog := tea.NewProgram(m)

	t := &TUI{title: title, prog: prog}

	go func() {
		_, _ = prog.Run()
	}()

	return t
}

func (t *TUI) Step(name string) { t.prog.Send(stepMsg(name)) }

func (t *TUI) Done(err error) {
	t.prog.Send(doneMsg{err: err})
	t.prog.Quit()
}

type tuiModel struct {
	title   string
	spinner spinner.Model
	lines   []string
	err     error
	done    bool
}

func (m tuiModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stepMsg:
		m.lines = append(m.lines, string(msg))
		if len(m.lines) > maxLogLines {
			m.lines = m.lines[len(m.lines)-maxLogLines:]
		}

		return m, nil
	case doneMsg:
		m.done = true
		m.err = msg.err

		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m tuiModel) View() string {
	var b strings.Builder

	status := m.spinner.View()
	if m.done {
		if m.err != nil {
			status = errStyle.Render("failed")
		} else {
			status = okStyle.Render("done")
		}
	}

	fmt.Fprintf(&b, "%s %s\n", status, titleStyle.Render(m.title))

	for _, l := range m.lines {
		fmt.Fprintln(&b, stepStyle.Render("  "+l))
	}

	if m.err != nil {
		fmt.Fprintln(&b, errStyle.Render("  "+m.err.Error()))
	}

	return b.String()
}
