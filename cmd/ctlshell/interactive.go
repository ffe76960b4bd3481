package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateBrowse modelState = iota
	stateEdit
	stateShowResult
)

type interactiveModel struct {
	err      error
	shell    *shell
	result   string
	rows     []row
	input    textinput.Model
	selected int
	loaded   bool
	state    modelState
}

func newInteractiveModel(s *shell) *interactiveModel {
	return &interactiveModel{shell: s, state: stateBrowse}
}

type loadedMsg struct {
	err  error
	rows []row
}

type setResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.load
}

func (m *interactiveModel) load() tea.Msg {
	rows, err := m.shell.snapshot(context.Background())
	return loadedMsg{rows: rows, err: err}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateEdit {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateBrowse && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateBrowse && m.selected < len(m.rows)-1 {
				m.selected++
			}

		case "r":
			if m.state == stateBrowse {
				return m, m.load
			}

		case "enter":
			switch m.state {
			case stateBrowse:
				if len(m.rows) == 0 {
					return m, nil
				}
				m.prepareInput()
				m.state = stateEdit
				return m, textinput.Blink

			case stateEdit:
				return m, m.setValue

			case stateShowResult:
				m.state = stateBrowse
				m.result = ""
				m.err = nil
				return m, m.load
			}

		case "esc":
			switch m.state {
			case stateEdit:
				m.state = stateBrowse
			case stateShowResult:
				m.state = stateBrowse
				m.result = ""
				m.err = nil
			}
		}

	case loadedMsg:
		m.loaded = true
		m.rows = msg.rows
		m.err = msg.err
		if m.selected >= len(m.rows) {
			m.selected = max(len(m.rows)-1, 0)
		}
		return m, nil

	case setResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateEdit {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) prepareInput() {
	r := m.rows[m.selected]
	ti := textinput.New()
	ti.Prompt = r.path + ": "
	ti.Placeholder = r.typ
	ti.Width = 40
	ti.SetValue(strings.Trim(r.value, `"`))
	ti.Focus()
	m.input = ti
}

func (m *interactiveModel) setValue() tea.Msg {
	var out strings.Builder
	s := *m.shell
	s.out = &out
	err := s.set(context.Background(), []string{m.rows[m.selected].path, m.input.Value()})
	return setResultMsg{result: strings.TrimSpace(out.String()), err: err}
}

func (m *interactiveModel) View() string {
	if !m.loaded {
		return "Reading controls..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Controls"))
	b.WriteString(" ")
	b.WriteString(m.shell.name)
	b.WriteString("\n\n")

	switch m.state {
	case stateBrowse:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
		}
		width := 0
		for _, r := range m.rows {
			width = max(width, len(r.path))
		}
		for i, r := range m.rows {
			line := fmt.Sprintf("%-*s  %s  %s", width, r.path, r.value, typeStyle.Render(r.typ))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter edit • r refresh • q quit"))

	case stateEdit:
		r := m.rows[m.selected]
		b.WriteString(fmt.Sprintf("Setting %s\n\n", pathStyle.Render(r.path)))
		b.WriteString(m.input.View())
		b.WriteString(" ")
		b.WriteString(typeStyle.Render(r.typ))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter commit • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func runInteractive(s *shell) error {
	p := tea.NewProgram(newInteractiveModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
