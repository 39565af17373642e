package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// IsAffirmative reports whether answer accepts a y/n question.
func IsAffirmative(answer string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// confirmModel is a one-line bubbletea program: a prompt and an input field
// that finishes on enter.
type confirmModel struct {
	input   textinput.Model
	answer  string
	done    bool
	aborted bool
}

func newConfirmModel(question string) confirmModel {
	ti := textinput.New()
	ti.Prompt = question
	ti.CharLimit = 8
	ti.Focus()
	return confirmModel{input: ti}
}

func (m confirmModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		// Piped input delivers a bare newline, which arrives as ctrl+j.
		case "enter", "ctrl+j":
			m.answer = m.input.Value()
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m confirmModel) View() string {
	if m.done || m.aborted {
		return m.input.Prompt + m.answer + "\n"
	}
	return m.input.View()
}

// Prompter asks the question through a bubbletea program. Nil In/Out use the
// process terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

func (p Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}
	final, err := tea.NewProgram(newConfirmModel(question), opts...).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	m, ok := final.(confirmModel)
	if !ok || m.aborted {
		return false, nil
	}
	return IsAffirmative(m.answer), nil
}

// LinePrompter reads a single line from In. Used when stdin is not a
// terminal; end of input counts as "no".
type LinePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p LinePrompter) Confirm(ctx context.Context, question string) (bool, error) {
	fmt.Fprint(p.Out, question)

	type result struct {
		line string
		err  error
	}
	lines := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		lines <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-lines:
		if r.err != nil && !errors.Is(r.err, io.EOF) {
			return false, fmt.Errorf("read confirmation: %w", r.err)
		}
		if r.line == "" || !strings.HasSuffix(r.line, "\n") {
			fmt.Fprintln(p.Out)
		}
		return IsAffirmative(r.line), nil
	}
}
