package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsort/internal/classify"
	"github.com/nhle/mailsort/internal/keys"
	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/theme"
)

// Model is the help overlay view: keybindings plus the category rules.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Categories"),
		categoryLegend(),
	)

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// categoryLegend lists the subject rules in the order they are tried.
func categoryLegend() string {
	var b strings.Builder
	for i, r := range classify.Rules {
		fmt.Fprintf(&b, "%d. subject contains %q → %s\n",
			i+1, r.Keyword, theme.CategoryStyle(string(r.Category)).Render(string(r.Category)))
	}
	fmt.Fprintf(&b, "%d. anything else → %s",
		len(classify.Rules)+1, theme.CategoryStyle(string(model.CategoryOthers)).Render(string(model.CategoryOthers)))
	return theme.HelpStyle.Render(b.String())
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
