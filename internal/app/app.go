package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/mailsort/internal/credential"
	"github.com/nhle/mailsort/internal/keys"
	"github.com/nhle/mailsort/internal/model"
	"github.com/nhle/mailsort/internal/present"
	"github.com/nhle/mailsort/internal/source"
	appsync "github.com/nhle/mailsort/internal/sync"
	"github.com/nhle/mailsort/internal/ui"
	helpview "github.com/nhle/mailsort/internal/ui/help"
	"github.com/nhle/mailsort/internal/ui/inbox"
	"github.com/nhle/mailsort/internal/ui/login"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewInbox
	ViewHelp
)

// refreshTickMsg fires when the auto refresh interval elapses.
type refreshTickMsg struct{}

// credentialsSavedMsg reports the outcome of persisting a remembered login.
type credentialsSavedMsg struct {
	err error
}

// Model is the root Bubble Tea model: it routes between the login form,
// the inbox table and the help overlay, and owns the fetch runner.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          model.AppConfig
	configPath   string
	creds        model.SecretPair
	runner       *appsync.Runner
	logger       *zap.Logger

	loginView login.Model
	inboxView inbox.Model
	helpView  helpview.Model
	spinner   spinner.Model

	fetching  bool
	doneSeq   int
	lastFetch time.Time
	notice    ui.Notice
	ready     bool

	saveCredential func(server, username, password string) error
	saveUsername   func(path, username string) error
	now            func() time.Time
}

// New creates the root application model. When creds is complete the
// inbox is shown and a fetch starts immediately; otherwise the login form
// comes first.
func New(
	cfg *model.AppConfig,
	configPath string,
	creds model.SecretPair,
	runner *appsync.Runner,
	logger *zap.Logger,
) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	k := keys.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	if creds.Username == "" {
		creds.Username = cfg.IMAP.Username
	}

	view := ViewLogin
	if creds.Complete() {
		view = ViewInbox
	}

	return Model{
		currentView:    view,
		keys:           k,
		cfg:            *cfg,
		configPath:     configPath,
		creds:          creds,
		runner:         runner,
		logger:         logger,
		loginView:      login.New(cfg.IMAP.Server, creds.Username, 80, 24),
		inboxView:      inbox.New(80, 24),
		helpView:       helpview.New(k, 80, 24),
		spinner:        sp,
		saveCredential: saveKeyring,
		saveUsername:   model.SaveUsername,
		now:            time.Now,
	}
}

func saveKeyring(server, username, password string) error {
	return credential.Set(credential.AccountKey(server, username), password)
}

// Init starts the first fetch, or focuses the login form.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewInbox {
		return m.startFetch()
	}
	return m.loginView.Init()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.inboxView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		// Forward to active view so the huh form can calculate its layout.
		return m.updateActiveView(msg)

	case login.SubmittedMsg:
		m.creds = msg.Credentials
		m.cfg.IMAP.Username = msg.Credentials.Username
		m.currentView = ViewInbox
		m.notice = ui.Notice{}
		cmds := []tea.Cmd{m.startFetch()}
		if msg.Remember {
			cmds = append(cmds, m.rememberLogin())
		}
		return m, tea.Batch(cmds...)

	case login.CanceledMsg:
		if m.creds.Complete() {
			m.currentView = ViewInbox
		}
		return m, nil

	case credentialsSavedMsg:
		if msg.err != nil {
			m.logger.Warn("saving login failed", zap.Error(msg.err))
			m.notice = ui.Notice{Kind: ui.NoticeWarn, Text: fmt.Sprintf("Could not remember login: %v", msg.err)}
		}
		return m, nil

	case appsync.FetchStartedMsg:
		if msg.Seq <= m.doneSeq {
			// The run finished before its start notice arrived.
			return m, nil
		}
		m.fetching = true
		return m, m.spinner.Tick

	case appsync.FetchResultMsg:
		return m.handleFetchResult(msg)

	case refreshTickMsg:
		if m.currentView == ViewLogin || !m.creds.Complete() {
			return m, nil
		}
		cmd := m.startFetch()
		return m, cmd

	case spinner.TickMsg:
		if !m.fetching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleKey processes global keys. handled is false when the key belongs
// to the active sub-view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.Type == tea.KeyCtrlC {
		m.runner.Cancel()
		return m, tea.Quit, true
	}

	// The login form owns every other key, including q and ?.
	if m.currentView == ViewLogin {
		return m, nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.runner.Cancel()
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case msg.String() == "esc" && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return m, nil, true

	case key.Matches(msg, m.keys.Fetch):
		cmd := m.startFetch()
		return m, cmd, true

	case key.Matches(msg, m.keys.Cancel):
		if m.runner.Running() {
			m.runner.Cancel()
			m.notice = ui.Notice{Kind: ui.NoticeInfo, Text: "Canceling fetch..."}
		}
		return m, nil, true

	case key.Matches(msg, m.keys.Login):
		m.currentView = ViewLogin
		return m, m.loginView.Reset(m.creds.Username), true
	}

	return m, nil, false
}

// handleFetchResult replaces the inbox rows with a completed run, or
// clears them and shows a notice for a failed one.
func (m Model) handleFetchResult(msg appsync.FetchResultMsg) (tea.Model, tea.Cmd) {
	m.fetching = false
	if msg.Seq > m.doneSeq {
		m.doneSeq = msg.Seq
	}
	m.lastFetch = m.now()

	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) {
			m.notice = ui.Notice{Kind: ui.NoticeInfo, Text: present.Describe(msg.Err)}
			return m, nil
		}

		m.inboxView.Clear()
		m.notice = ui.Notice{Kind: ui.NoticeError, Text: present.Describe(msg.Err)}

		if source.IsAuthError(msg.Err) {
			// A rejected password must not be retried by auto refresh.
			m.creds.Password = ""
			m.currentView = ViewLogin
			cmd := m.loginView.Reset(m.creds.Username)
			m.loginView.SetError(m.notice.Text)
			return m, cmd
		}
		return m, m.scheduleRefresh()
	}

	res := msg.Result
	m.inboxView.SetSummaries(res.Summaries)

	switch {
	case res.Empty():
		m.notice = ui.Notice{Kind: ui.NoticeInfo, Text: present.NoResultsNotice}
	case len(res.Skipped) > 0:
		m.notice = ui.Notice{Kind: ui.NoticeWarn, Text: present.SkippedNotice(len(res.Skipped))}
	default:
		m.notice = ui.Notice{}
	}

	return m, m.scheduleRefresh()
}

// startFetch asks the runner for a fetch cycle and marks the model as
// fetching. It is a no-op while one is already in flight.
func (m *Model) startFetch() tea.Cmd {
	if !m.creds.Complete() {
		return nil
	}
	cmd := m.runner.Start(m.cfg.FetchConfig(m.creds))
	if cmd != nil {
		m.fetching = true
	}
	return cmd
}

// scheduleRefresh arms the auto refresh timer when it is configured.
func (m Model) scheduleRefresh() tea.Cmd {
	if m.cfg.Display.RefreshIntervalSec <= 0 {
		return nil
	}
	d := time.Duration(m.cfg.Display.RefreshIntervalSec) * time.Second
	return tea.Tick(d, func(time.Time) tea.Msg { return refreshTickMsg{} })
}

// rememberLogin stores the password in the keyring and the username in
// the config file. Nothing else from the merged config is written back.
func (m Model) rememberLogin() tea.Cmd {
	creds := m.creds
	server := m.cfg.IMAP.Server
	path := m.configPath
	saveCredential := m.saveCredential
	saveUsername := m.saveUsername
	return func() tea.Msg {
		if err := saveCredential(server, creds.Username, creds.Password); err != nil {
			return credentialsSavedMsg{err: fmt.Errorf("saving password: %w", err)}
		}
		if path != "" {
			if err := saveUsername(path, creds.Username); err != nil {
				return credentialsSavedMsg{err: err}
			}
		}
		return credentialsSavedMsg{}
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.fetchStatus())
	notice := m.layout.RenderNotice(m.notice)
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, notice, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

func (m Model) title() string {
	if m.creds.Username == "" {
		return "mailsort"
	}
	return fmt.Sprintf("mailsort · %s · %s", m.creds.Username, m.cfg.IMAP.Mailbox)
}

// fetchStatus returns a short string describing the runner state.
func (m Model) fetchStatus() string {
	switch {
	case m.fetching:
		return m.spinner.View() + " fetching"
	case m.lastFetch.IsZero():
		return "idle"
	default:
		return fmt.Sprintf("%d messages · %s", m.inboxView.Len(), m.lastFetch.Format("15:04:05"))
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter next | tab move | esc back | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	default:
		if m.fetching {
			return "x cancel | ? help | q quit"
		}
		return "r fetch | j/k move | l login | ? help | q quit"
	}
}
