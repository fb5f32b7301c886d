package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsort/internal/theme"
)

// NoticeKind selects the style of the notice line.
type NoticeKind int

const (
	NoticeNone NoticeKind = iota
	NoticeInfo
	NoticeWarn
	NoticeError
)

// Notice is a one-line message shown between the header and the content.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Layout manages the terminal frame dimensions: header, notice line,
// content and status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	NoticeHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// The header, notice and status bar are one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		NoticeHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.NoticeHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top header bar with a title on the left and
// the fetch status on the right.
func (l Layout) RenderHeader(title string, status string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(status)

	gap := max(l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered), 0)

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderNotice renders n on a single line, truncated to the frame width.
// An empty notice renders as a blank line so the frame does not shift.
func (l Layout) RenderNotice(n Notice) string {
	var style lipgloss.Style
	switch n.Kind {
	case NoticeError:
		style = theme.ErrorNoticeStyle
	case NoticeWarn:
		style = theme.WarnNoticeStyle
	case NoticeInfo:
		style = theme.InfoNoticeStyle
	default:
		return lipgloss.NewStyle().Width(l.Width).Render("")
	}

	return style.
		Padding(0, 1).
		MaxWidth(l.Width).
		Render(n.Text)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(l.Width-lipgloss.Width(rendered), 0)

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, notice line, content area and status bar.
func (l Layout) RenderWithFrame(
	header string,
	notice string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		notice,
		content,
		statusBar,
	)
}
