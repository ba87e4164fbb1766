package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	confirmFileStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// confirmModel asks whether a list of documents may be deleted.
type confirmModel struct {
	files     []string
	confirmed bool
	done      bool
}

func newConfirmModel(files []string) confirmModel {
	return confirmModel{files: files}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.confirmed = true
		m.done = true
		return m, tea.Quit
	case "n", "q", "esc", "enter", "ctrl+c":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	b.WriteString(confirmTitleStyle.Render(fmt.Sprintf("Delete %d obsolete document(s)?", len(m.files))))
	b.WriteString("\n\n")
	for _, f := range m.files {
		b.WriteString(confirmFileStyle.Render("  " + f))
		b.WriteString("\n")
	}
	b.WriteString("\n[y] delete  [N] keep\n")
	return b.String()
}

// confirmDeletion shows the confirmation prompt and reports whether the
// user accepted.
var confirmDeletion = func(files []string) (bool, error) {
	final, err := tea.NewProgram(newConfirmModel(files)).Run()
	if err != nil {
		return false, fmt.Errorf("running confirmation prompt: %w", err)
	}
	m, ok := final.(confirmModel)
	return ok && m.confirmed, nil
}
