package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/theme"
)

// SubmittedMsg is sent when the user completes the login form.
type SubmittedMsg struct {
	Credentials model.SecretPair

	// Remember asks for the password to be saved to the OS keyring.
	Remember bool
}

// CanceledMsg is sent when the user leaves the form with esc.
type CanceledMsg struct{}

// fields is shared between copies of Model so huh can write through
// the bound pointers.
type fields struct {
	username string
	password string
	remember bool
}

// Model is the login view: a huh form for username, masked password and
// the remember choice.
type Model struct {
	form          *huh.Form
	fields        *fields
	server        string
	errMsg        string
	width, height int
}

// New creates a login view for server with username pre-filled.
func New(server, username string, width, height int) Model {
	m := Model{
		server: server,
		width:  width,
		height: height,
	}
	m.Reset(username)
	return m
}

// Reset rebuilds the form, keeping username and clearing the password.
func (m *Model) Reset(username string) tea.Cmd {
	m.fields = &fields{username: username}
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Description(fmt.Sprintf("Account on %s", m.server)).
				Placeholder("user@example.com").
				Value(&m.fields.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fields.password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Remember password").
				Description("Store the password in the OS keyring").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fields.remember),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

// Init focuses the first field.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update drives the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return CanceledMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		submitted := SubmittedMsg{
			Credentials: model.SecretPair{
				Username: strings.TrimSpace(m.fields.username),
				Password: m.fields.password,
			},
			Remember: m.fields.remember,
		}
		m.errMsg = ""
		return m, func() tea.Msg { return submitted }
	case huh.StateAborted:
		return m, func() tea.Msg { return CanceledMsg{} }
	}

	return m, cmd
}

// SetError shows text above the form, e.g. after a rejected login.
func (m *Model) SetError(text string) {
	m.errMsg = text
}

// View renders the form.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to " + m.server)

	parts := []string{title}
	if m.errMsg != "" {
		parts = append(parts, theme.ErrorNoticeStyle.MarginBottom(1).Render(m.errMsg))
	}
	parts = append(parts, m.form.View())

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
