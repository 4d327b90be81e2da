// Package tui is the interactive chat front end for `rag run`.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/gorag/internal/agent"
)

// Asker is the TUI-facing subset of the agent.
type Asker interface {
	Ask(ctx context.Context, query string, k int, conv *agent.Conversation) (*agent.Turn, error)
}

// answerMsg delivers a finished turn to Update.
type answerMsg struct {
	turn *agent.Turn
	err  error
}

// Model is the Bubble Tea model for the chat session.
type Model struct {
	ctx      context.Context
	asker    Asker
	conv     *agent.Conversation
	k        int
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	summary  string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model. summary is shown under the title.
func New(ctx context.Context, asker Asker, k int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "you: "
	ti.Placeholder = "Ask a question, or type exit"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		asker:    asker,
		conv:     agent.NewConversation(),
		k:        k,
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Ready.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + 1 + ih + 1 // header+summary, status, input box, spacer
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.lines = append(m.lines, errorStyle.Render("error: "+msg.err.Error()))
		} else {
			m.lines = append(m.lines, renderTurn(msg.turn)...)
			m.status = statusFor(msg.turn)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			q := strings.TrimSpace(m.input.Value())
			switch {
			case q == "" || m.busy:
				return m, nil
			case strings.EqualFold(q, "exit") || strings.EqualFold(q, "quit"):
				return m, tea.Quit
			}
			m.input.Reset()
			m.busy = true
			m.status = "Thinking..."
			m.lines = append(m.lines, userStyle.Render("you: ")+q)
			m.refresh()
			return m, m.ask(q)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(cmd, vpCmd)
}

func (m Model) ask(q string) tea.Cmd {
	ctx, asker, k, conv := m.ctx, m.asker, m.k, m.conv
	return func() tea.Msg {
		turn, err := asker.Ask(ctx, q, k, conv)
		return answerMsg{turn: turn, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Agent")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	if len(m.lines) == 0 {
		m.viewport.SetContent("No questions yet.")
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func renderTurn(turn *agent.Turn) []string {
	var out []string
	if len(turn.Results) > 0 {
		out = append(out, dimStyle.Render("top results:"))
		for _, r := range turn.Results {
			out = append(out, dimStyle.Render(fmt.Sprintf("  [%s] score=%.3f", r.Ref(), r.Score)))
		}
	}
	answer := turn.Answer
	if turn.Err != nil {
		answer = errorStyle.Render(answer)
	}
	out = append(out, assistantStyle.Render("assistant:"), answer, "")
	return out
}

func statusFor(turn *agent.Turn) string {
	var b strings.Builder
	switch {
	case turn.Err != nil:
		b.WriteString("Failed")
	case turn.Answered:
		b.WriteString("Answered")
	default:
		b.WriteString("Needs clarification")
	}
	fmt.Fprintf(&b, " (top=%.3f threshold=%.2f", turn.Decision.TopScore, turn.Decision.Threshold)
	if turn.Decision.Vague {
		b.WriteString(" vague")
	}
	b.WriteString(")")
	if turn.MetricsPath != "" {
		fmt.Fprintf(&b, " metrics saved to %s", turn.MetricsPath)
	}
	return b.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run starts the chat program on the terminal and blocks until the user
// quits.
func Run(ctx context.Context, asker Asker, k int, summary string) error {
	p := tea.NewProgram(New(ctx, asker, k, summary), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
