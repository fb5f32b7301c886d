package inbox

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/present"
	"github.com/nhle/mailsort/internal/theme"
)

const (
	categoryWidth = 12
	minFromWidth  = 16
	footerHeight  = 2
)

// Model is the inbox view: a From/Subject/Category table of the last
// fetch, a per-category count line and the full text of the selected row.
type Model struct {
	table     table.Model
	summaries []model.EmailSummary
	loaded    bool
	width     int
	height    int
}

// New creates an empty inbox view.
func New(width, height int) Model {
	t := table.New(
		table.WithColumns(columns(width)),
		table.WithFocused(true),
		table.WithHeight(tableHeight(height)),
	)

	styles := table.DefaultStyles()
	styles.Header = theme.TableHeaderStyle.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true)
	styles.Cell = theme.TableCellStyle
	styles.Selected = theme.SelectedRowStyle
	t.SetStyles(styles)

	return Model{
		table:  t,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update forwards navigation keys to the table.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// SetSummaries replaces every row with summaries, in order, and moves the
// cursor back to the first row.
func (m *Model) SetSummaries(summaries []model.EmailSummary) {
	m.summaries = append([]model.EmailSummary(nil), summaries...)
	m.loaded = true

	rows := make([]table.Row, len(m.summaries))
	for i, s := range m.summaries {
		rows[i] = table.Row{s.Sender, s.Subject, string(s.Category)}
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

// Clear removes every row, e.g. after a failed fetch.
func (m *Model) Clear() {
	m.summaries = nil
	m.table.SetRows(nil)
	m.table.SetCursor(0)
}

// Len returns the number of rows shown.
func (m Model) Len() int {
	return len(m.summaries)
}

// Selected returns the summary under the cursor.
func (m Model) Selected() (model.EmailSummary, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.summaries) {
		return model.EmailSummary{}, false
	}
	return m.summaries[i], true
}

// View renders the table, or guidance text when there is nothing to show.
func (m Model) View() string {
	if len(m.summaries) == 0 {
		return m.renderEmptyState()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.table.View(), m.renderCounts(), m.renderDetail())
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loaded {
		return style.Render(present.NoResultsNotice + "\n\nPress r to fetch again.")
	}
	return style.Render("Nothing fetched yet.\n\nPress r to fetch the latest messages.")
}

// renderCounts shows how many rows fell into each category.
func (m Model) renderCounts() string {
	counts := make(map[model.Category]int, len(model.Categories))
	for _, s := range m.summaries {
		counts[s.Category]++
	}

	parts := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		parts = append(parts, theme.CategoryStyle(string(c)).Render(fmt.Sprintf("%s %d", c, counts[c])))
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(parts, "  "))
}

// renderDetail shows the selected sender and subject, which the table
// columns may have truncated.
func (m Model) renderDetail() string {
	sel, ok := m.Selected()
	if !ok {
		return ""
	}
	return lipgloss.NewStyle().
		Padding(0, 1).
		MaxWidth(m.width).
		Foreground(theme.ColorGray).
		Render(sel.Sender + " · " + sel.Subject)
}

// SetSize updates the view dimensions and recomputes column widths.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columns(width))
	m.table.SetWidth(width)
	m.table.SetHeight(tableHeight(height))
}

// columns splits width between From and Subject; Category is fixed.
func columns(width int) []table.Column {
	// Each cell carries one column of padding on either side.
	avail := max(width-categoryWidth-3*2, 2*minFromWidth)
	from := max(avail/3, minFromWidth)
	return []table.Column{
		{Title: present.Columns[0], Width: from},
		{Title: present.Columns[1], Width: avail - from},
		{Title: present.Columns[2], Width: categoryWidth},
	}
}

func tableHeight(height int) int {
	return max(height-footerHeight, 3)
}
