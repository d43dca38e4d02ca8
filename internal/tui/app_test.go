package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/kingrea/releasedesk/internal/activity"
	"github.com/kingrea/releasedesk/internal/auth"
	"github.com/kingrea/releasedesk/internal/config"
	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

func TestLoginFailureThenSuccess(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, false)
	if app.screen != screenLogin {
		t.Fatalf("expected login screen on start")
	}

	app.login.username.SetValue("operador")
	app.login.password.SetValue("wrong")
	app.login.focus = 1
	result := submitLogin(t, app)
	if result.ok {
		t.Fatalf("wrong password accepted")
	}
	if app.screen != screenLogin {
		t.Fatalf("failed login must stay on the login screen")
	}
	if app.login.err != auth.FailureMessage {
		t.Fatalf("unexpected error %q", app.login.err)
	}
	if app.login.password.Value() != "" {
		t.Fatalf("password should be cleared after a failure")
	}

	app.login.password.SetValue("modelo2024")
	if result := submitLogin(t, app); !result.ok {
		t.Fatalf("valid credentials rejected")
	}
	if app.screen != screenDashboard {
		t.Fatalf("expected dashboard after sign in")
	}
	if app.dashboard.status != "Signed in as operador." {
		t.Fatalf("unexpected status %q", app.dashboard.status)
	}
	if app.login.username.Value() != "" {
		t.Fatalf("login form should be reset after sign in")
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, false)
	app.login.focus = 1
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("empty form must not submit")
	}
	if app.login.err != "Enter a username and password." {
		t.Fatalf("unexpected error %q", app.login.err)
	}
}

func TestReleaseKeyHoldsLatchUntilRunFinishes(t *testing.T) {
	gate := make(chan struct{})
	app := newTestApp(t, testBackend{gate: gate}, nil, true)

	cmd := press(app, "r")
	if cmd == nil {
		t.Fatalf("release should return commands")
	}
	if !app.deps.Engine.Running() || !app.dashboard.running {
		t.Fatalf("expected a run in progress")
	}
	if !strings.Contains(app.View(), "Processing...") {
		t.Fatalf("footer should show the processing indicator")
	}

	press(app, "r")
	if app.dashboard.status != "A release run is already in progress." {
		t.Fatalf("second release not refused: %q", app.dashboard.status)
	}
	press(app, "x")
	if app.deps.Store.Len() != 5 {
		t.Fatalf("clear must be refused while running")
	}
	press(app, "L")
	if app.screen != screenDashboard {
		t.Fatalf("logout must be refused while running")
	}

	close(gate)
	var finished *runFinishedMsg
	for _, msg := range collect(cmd) {
		if m, ok := msg.(runFinishedMsg); ok {
			finished = &m
		}
	}
	if finished == nil {
		t.Fatalf("run never reported completion")
	}
	app.Update(*finished)
	if app.dashboard.running {
		t.Fatalf("dashboard still marked running")
	}
	if want := "Release finished: 4 released, 0 failed."; app.dashboard.status != want {
		t.Fatalf("status = %q, want %q", app.dashboard.status, want)
	}
	if app.deps.Store.Counts().Pending != 0 {
		t.Fatalf("expected every pending order released")
	}
}

func TestSelectionKeys(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, true)
	sel := app.deps.Selection

	press(app, " ")
	if !sel.Has("ORD-001") || sel.Len() != 1 {
		t.Fatalf("space should select the row under the cursor, got %v", sel.IDs())
	}
	if !strings.Contains(app.View(), "1 selected (1 pending)") {
		t.Fatalf("footer should count the selection")
	}
	press(app, " ")
	if sel.Len() != 0 {
		t.Fatalf("space should toggle the row off")
	}

	press(app, "a")
	if sel.Len() != 5 {
		t.Fatalf("expected all rows selected, got %d", sel.Len())
	}
	press(app, "a")
	if sel.Len() != 0 {
		t.Fatalf("expected all rows deselected, got %d", sel.Len())
	}
}

func TestModeToggleIsPersisted(t *testing.T) {
	projectDir := t.TempDir()
	if err := config.InitDeskDir(projectDir); err != nil {
		t.Fatalf("init desk dir: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	app := newTestApp(t, testBackend{}, cfg, true)
	if app.dashboard.relMode != release.ModeIdenticalBatches {
		t.Fatalf("unexpected initial mode %s", app.dashboard.relMode)
	}

	press(app, "m")
	if app.dashboard.relMode != release.ModeConsecutiveBatches {
		t.Fatalf("mode not toggled")
	}
	reloaded, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if reloaded.ReleaseMode() != config.ModeConsecutiveBatches {
		t.Fatalf("mode not persisted, got %q", reloaded.ReleaseMode())
	}
}

func TestAddAndEditOrder(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, true)

	press(app, "n")
	if app.deps.Store.Len() != 6 {
		t.Fatalf("expected a new order")
	}
	added, ok := app.dashboard.current()
	if !ok || added.Product != "" || added.Status != order.StatusPending {
		t.Fatalf("cursor should rest on the new empty order, got %+v", added)
	}

	press(app, "right")
	press(app, "e")
	if app.dashboard.mode != modeEdit {
		t.Fatalf("expected edit mode")
	}
	app.dashboard.edit.SetValue("Victoria 355ml")
	app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if app.dashboard.mode != modeBrowse {
		t.Fatalf("enter should leave edit mode")
	}
	got, _ := app.deps.Store.Get(added.ID)
	if got.Description != "Victoria 355ml" {
		t.Fatalf("description not saved: %+v", got)
	}

	press(app, "e")
	app.dashboard.edit.SetValue("discarded")
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	got, _ = app.deps.Store.Get(added.ID)
	if got.Description != "Victoria 355ml" {
		t.Fatalf("esc must discard the edit")
	}
}

func TestSearchFiltersRows(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, true)

	press(app, "/")
	if app.dashboard.mode != modeSearch {
		t.Fatalf("expected search mode")
	}
	for _, r := range "modelo" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if len(app.dashboard.visible) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(app.dashboard.visible))
	}

	press(app, "esc")
	if len(app.dashboard.visible) != 5 || app.dashboard.mode != modeBrowse {
		t.Fatalf("esc should clear the search")
	}

	press(app, "/")
	for _, r := range "zzz" {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	if !strings.Contains(app.View(), "No orders match the search.") {
		t.Fatalf("expected the empty search state")
	}
}

func TestClearAllOrders(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, true)
	app.deps.Selection.Add("ORD-001")

	press(app, "x")
	if app.deps.Store.Len() != 0 || app.deps.Selection.Len() != 0 {
		t.Fatalf("clear should empty the store and the selection")
	}
	if !strings.Contains(app.View(), "No orders. Press n to add one.") {
		t.Fatalf("expected the empty grid state")
	}
	press(app, "x")
	if app.dashboard.status != "There are no orders to clear." {
		t.Fatalf("unexpected status %q", app.dashboard.status)
	}
}

func TestActivityEntriesReachTheLogPanel(t *testing.T) {
	app := newTestApp(t, testBackend{}, nil, true)
	app.deps.Log.Warn("Batch %s on hold", "L2024-003")
	app.Update(logEntryMsg{})
	if !strings.Contains(app.dashboard.logView.View(), "Batch L2024-003 on hold") {
		t.Fatalf("log panel missing the new entry")
	}
}

type testBackend struct {
	gate chan struct{}
}

func (testBackend) Name() string                  { return "Test RFC" }
func (testBackend) Connect(context.Context) error { return nil }

func (b testBackend) Release(ctx context.Context, o order.Order) release.Outcome {
	if b.gate != nil {
		<-b.gate
	}
	return release.Outcome{Released: true}
}

func newTestApp(t *testing.T, backend release.Backend, cfg *config.Config, signedIn bool) *App {
	t.Helper()
	store := order.NewStore()
	if err := store.Insert(order.SampleOrders()...); err != nil {
		t.Fatalf("seed: %v", err)
	}
	selection := order.NewSelection()
	log, err := activity.New()
	if err != nil {
		t.Fatalf("activity log: %v", err)
	}
	instant := func(context.Context, time.Duration) error { return nil }
	engine, err := release.NewEngine(store, selection, log, backend, release.WithSleep(instant))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("modelo2024"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	authenticator, err := auth.New([]config.User{{Username: "operador", PasswordHash: string(hash)}})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	if signedIn && !authenticator.Login("operador", "modelo2024") {
		t.Fatalf("login failed")
	}
	app := NewApp(Deps{
		Config:    cfg,
		Store:     store,
		Selection: selection,
		Log:       log,
		Engine:    engine,
		Auth:      authenticator,
	}, WithLoginDelay(0))
	t.Cleanup(app.Close)
	return app
}

func press(app *App, key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := app.Update(msg)
	return cmd
}

func submitLogin(t *testing.T, app *App) loginResultMsg {
	t.Helper()
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected a login command")
	}
	for _, msg := range collect(cmd) {
		if result, ok := msg.(loginResultMsg); ok {
			app.Update(result)
			return result
		}
	}
	t.Fatalf("login command produced no result")
	return loginResultMsg{}
}

// collect runs cmd and any batched commands, returning their messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, collect(c)...)
	}
	return out
}
