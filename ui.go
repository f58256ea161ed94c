package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Margin(1, 0)
	appStyle     = lipgloss.NewStyle().Margin(1, 2, 0, 2)
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	grayStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	italicStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

var stageLabels = map[Stage]string{
	StageOpen:       "Open portal",
	StageLogin:      "Login",
	StageToken:      "Token",
	StageRelogin:    "Login again",
	StageAttendance: "Attendance",
}

// runner events and the final result, delivered with Program.Send
type stageMsg Event

type runDoneMsg struct {
	report *Report
	err    error
}

type stageLine struct {
	status  Status
	message string
}

type model struct {
	spinner  spinner.Model
	input    textinput.Model
	portal   string
	lines    map[Stage]stageLine
	tokens   chan<- string // nil unless token prompt mode
	waiting  bool          // token stage is waiting for a human
	sent     bool
	cancel   context.CancelFunc
	keepOpen bool
	done     bool
	report   *Report
	err      error
	quitting bool
}

func newModel(portal string, tokens chan<- string, cancel context.CancelFunc, keepOpen bool) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "one-time token"
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 64
	ti.Width = 20

	lines := make(map[Stage]stageLine, len(allStages))
	for _, s := range allStages {
		lines[s] = stageLine{status: StatusPending}
	}
	return model{
		spinner:  s,
		input:    ti,
		portal:   portal,
		lines:    lines,
		tokens:   tokens,
		cancel:   cancel,
		keepOpen: keepOpen,
	}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Handle token prompt
		if m.waiting && m.tokens != nil {
			switch msg.String() {
			case "ctrl+c", "esc":
				return m.quit()
			case "enter":
				token := strings.TrimSpace(m.input.Value())
				if token != "" {
					select {
					case m.tokens <- token:
						m.sent = true
					default:
					}
					m.input.Reset()
				}
				return m, nil
			default:
				var cmd tea.Cmd
				m.input, cmd = m.input.Update(msg)
				return m, cmd
			}
		}

		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m.quit()
		default:
			return m, nil
		}

	case stageMsg:
		m.lines[msg.Stage] = stageLine{status: msg.Status, message: msg.Message}
		if msg.Stage == StageToken {
			m.waiting = msg.Status == StatusWaiting
			if m.waiting && m.tokens != nil {
				return m, m.input.Focus()
			}
			m.input.Blur()
		}
		return m, nil

	case runDoneMsg:
		m.done = true
		m.waiting = false
		m.report = msg.report
		m.err = msg.err
		if msg.err != nil || !m.keepOpen {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

func (m model) View() string {
	var s string

	s += boldStyle.Render("attendo") + " " + italicStyle.Render(m.portal) + "\n\n"

	for _, stage := range allStages {
		line := m.lines[stage]
		s += fmt.Sprintf("%s %s", m.glyph(line.status), stageLabels[stage])
		if line.message != "" {
			s += "  " + italicStyle.Render(line.message)
		}
		s += "\n"
	}

	if m.waiting && m.tokens != nil {
		s += "\n" + m.input.View() + "\n"
		if m.sent {
			s += italicStyle.Render("token sent, waiting for the portal") + "\n"
		}
	}

	if m.done && m.report != nil {
		s += "\n" + renderOutcome(m.report)
	}

	if !m.quitting {
		switch {
		case m.waiting && m.tokens != nil:
			s += helpStyle.Render("enter send • esc quit")
		case m.done:
			s += helpStyle.Render("browser kept open • q quit and close it")
		default:
			s += helpStyle.Render("q quit")
		}
	} else {
		s += "\n"
	}

	return appStyle.Render(s)
}

func (m model) glyph(status Status) string {
	switch status {
	case StatusRunning, StatusWaiting:
		return m.spinner.View()
	case StatusDone:
		return greenStyle.Render("✓")
	case StatusSkipped:
		return grayStyle.Render("–")
	case StatusFailed:
		return redStyle.Render("✗")
	default:
		return grayStyle.Render("·")
	}
}
