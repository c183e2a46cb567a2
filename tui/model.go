// Package tui is the interactive terminal surface for the playground.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wippyai/celfmt-ui/meta"
	"github.com/wippyai/celfmt-ui/playground"
)

// Status line texts.
const (
	StatusLoading     = "Loading formatter..."
	StatusReady       = "Ready"
	StatusUnavailable = "Formatter unavailable"
)

type focus int

const (
	focusInput focus = iota
	focusButton
	focusCount
)

// dispatchMsg carries a function onto the program loop.
type dispatchMsg struct {
	fn func()
}

// StatusMsg replaces the status line.
type StatusMsg string

// Model is a bubbletea model implementing playground.Surface.
// Surface methods must only be called from the program loop, which
// Dispatcher guarantees.
type Model struct {
	input   textarea.Model
	output  textarea.Model
	links   map[meta.Slot]meta.Link
	trigger func()
	status  string
	title   string
	focus   focus
	width   int
}

// New creates a model titled with the module location.
func New(title string) *Model {
	input := textarea.New()
	input.Placeholder = "CEL program"
	input.ShowLineNumbers = true
	input.CharLimit = 0
	input.MaxHeight = 0
	input.SetHeight(12)
	input.Focus()

	output := textarea.New()
	output.ShowLineNumbers = false
	output.CharLimit = 0
	output.MaxHeight = 0
	output.SetHeight(12)
	output.Blur()

	return &Model{
		input:  input,
		output: output,
		links:  make(map[meta.Slot]meta.Link),
		status: StatusLoading,
		title:  title,
	}
}

// Dispatcher returns a playground.Dispatcher that runs functions inside
// the program's Update. Pass tea.Program.Send.
func Dispatcher(send func(tea.Msg)) playground.Dispatcher {
	return playground.DispatchFunc(func(fn func()) {
		send(dispatchMsg{fn: fn})
	})
}

func (m *Model) Input() string {
	return m.input.Value()
}

func (m *Model) SetInput(text string) {
	m.input.SetValue(text)
}

func (m *Model) SetOutput(text string) {
	m.output.SetValue(text)
}

func (m *Model) Output() string {
	return m.output.Value()
}

func (m *Model) SetLink(l meta.Link) {
	m.links[l.Slot] = l
}

func (m *Model) EnableTrigger(fn func()) {
	m.trigger = fn
	m.status = StatusReady
}

// Enabled reports whether the format button is active.
func (m *Model) Enabled() bool {
	return m.trigger != nil
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case dispatchMsg:
		msg.fn()
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.SetWidth(msg.Width - 2)
		m.output.SetWidth(msg.Width - 2)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "tab":
			m.setFocus((m.focus + 1) % focusCount)
			return m, nil

		case "shift+tab":
			m.setFocus((m.focus + focusCount - 1) % focusCount)
			return m, nil

		case "ctrl+s":
			m.activate()
			return m, nil

		case "enter", " ":
			if m.focus == focusButton {
				m.activate()
				return m, nil
			}
		}
	}

	if m.focus == focusInput {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) setFocus(f focus) {
	m.focus = f
	if f == focusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// activate runs the trigger once if it is enabled.
func (m *Model) activate() {
	if m.trigger != nil {
		m.trigger()
	}
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("CEL Formatter"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n")
	b.WriteString(m.linksView())
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Input"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	b.WriteString(m.buttonView())
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Output"))
	b.WriteString("\n")
	b.WriteString(m.output.View())
	b.WriteString("\n\n")

	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab focus • ctrl+s format • enter press button • ctrl+c quit"))
	return b.String()
}

var slotLabels = map[meta.Slot]string{
	meta.SlotCelfmt: "celfmt",
	meta.SlotMito:   "mito",
	meta.SlotCELGo:  "cel-go",
	meta.SlotGo:     "go",
}

func (m *Model) linksView() string {
	parts := make([]string, 0, len(slotLabels))
	for _, slot := range meta.Slots() {
		l, ok := m.links[slot]
		if !ok {
			parts = append(parts, helpStyle.Render(slotLabels[slot]+" -"))
			continue
		}
		parts = append(parts, labelStyle.Render(slotLabels[slot])+" "+Hyperlink(l.Href, linkStyle.Render(l.Text)))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) buttonView() string {
	switch {
	case m.trigger == nil:
		return buttonDisabledStyle.Render("Format")
	case m.focus == focusButton:
		return buttonFocusedStyle.Render("Format")
	default:
		return buttonStyle.Render("Format")
	}
}

// Hyperlink wraps text in an OSC 8 terminal hyperlink to href.
func Hyperlink(href, text string) string {
	return "\x1b]8;;" + href + "\x1b\\" + text + "\x1b]8;;\x1b\\"
}

var _ playground.Surface = (*Model)(nil)
