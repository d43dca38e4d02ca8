// internal/tui/app.go
//
// This is the terminal dashboard for releasedesk. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the application state (screen, widgets, shared stores)
// 2. Update: a function that updates state based on messages
// 3. View: a function that renders state to a string
//
// Release runs execute on the engine's goroutine. The UI only learns about
// their progress through messages: new activity entries arrive from a log
// subscription, and a periodic refresh redraws order statuses while a run
// holds the latch.

package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/auth"
	"github.com/kingrea/releasedesk/internal/config"
	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

// screen represents which view is active.
type screen int

const (
	screenLogin screen = iota
	screenDashboard
)

const (
	defaultLoginDelay = 800 * time.Millisecond
	runRefreshEvery   = 200 * time.Millisecond
	logSubscription   = 64
)

// Deps are the shared collaborators the dashboard reads and mutates.
type Deps struct {
	Config    *config.Config
	Store     *order.Store
	Selection *order.Selection
	Log       *activity.Log
	Engine    *release.Engine
	Auth      *auth.Authenticator
	Logger    *zap.SugaredLogger
	// LoginHint is shown under the login form, e.g. the demo credentials.
	LoginHint string
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLoginDelay overrides the pause before credentials are checked.
func WithLoginDelay(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.loginDelay = d
		}
	}
}

// WithContext sets the context release runs inherit.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

// App is the root model.
type App struct {
	deps       Deps
	ctx        context.Context
	loginDelay time.Duration
	logger     *zap.SugaredLogger

	screen    screen
	login     *loginView
	dashboard *dashboardView

	entries     <-chan activity.Entry
	unsubscribe func()

	width  int
	height int
}

// Messages exchanged between commands and Update.
type (
	loginResultMsg struct {
		ok   bool
		user string
	}
	logEntryMsg struct {
		entry activity.Entry
	}
	logClosedMsg   struct{}
	runRefreshMsg  struct{}
	runFinishedMsg struct{ summary release.Summary }
)

// NewApp builds the root model. Close must be called once the program exits.
func NewApp(deps Deps, opts ...AppOption) *App {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	a := &App{
		deps:       deps,
		ctx:        context.Background(),
		loginDelay: defaultLoginDelay,
		logger:     logger,
		screen:     screenLogin,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.login = newLoginView(a)
	a.dashboard = newDashboardView(a)
	a.entries, a.unsubscribe = deps.Log.Subscribe(logSubscription)
	if deps.Auth != nil && deps.Auth.IsAuthenticated() {
		a.screen = screenDashboard
	}
	return a
}

// Close releases the activity subscription.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.login.Init(), a.waitForEntry())
}

func (a *App) waitForEntry() tea.Cmd {
	ch := a.entries
	return func() tea.Msg {
		entry, ok := <-ch
		if !ok {
			return logClosedMsg{}
		}
		return logEntryMsg{entry: entry}
	}
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.resize(msg.Width, msg.Height)
		return a, nil

	case logEntryMsg:
		// runs started over the bridge only surface through the log
		a.dashboard.refresh()
		a.dashboard.refreshLog()
		return a, a.waitForEntry()

	case logClosedMsg:
		return a, nil

	case loginResultMsg:
		return a.handleLoginResult(msg)

	case runRefreshMsg, runFinishedMsg:
		return a, a.dashboard.Update(msg)

	case spinner.TickMsg:
		// each spinner ignores ticks addressed to the other
		return a, tea.Batch(a.login.Update(msg), a.dashboard.Update(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
	}

	switch a.screen {
	case screenLogin:
		return a, a.login.Update(msg)
	default:
		return a, a.dashboard.Update(msg)
	}
}

func (a *App) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	a.login.submitting = false
	if !msg.ok {
		a.login.err = auth.FailureMessage
		a.login.password.SetValue("")
		return a, nil
	}
	a.login.reset()
	a.screen = screenDashboard
	a.dashboard.status = "Signed in as " + msg.user + "."
	a.dashboard.refresh()
	a.dashboard.refreshLog()
	return a, nil
}

func (a *App) logout() tea.Cmd {
	user := a.deps.Auth.CurrentUser()
	a.deps.Auth.Logout()
	a.logger.Infow("operator signed out", "user", user)
	a.screen = screenLogin
	return a.login.Init()
}

// View renders the current screen.
func (a *App) View() string {
	if a.screen == screenLogin {
		return a.login.View()
	}
	return a.dashboard.View()
}
