package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/releasedesk/internal/order"
	"github.com/kingrea/releasedesk/internal/release"
)

type inputMode int

const (
	modeBrowse inputMode = iota
	modeSearch
	modeEdit
)

const (
	logPanelHeight  = 8
	minTableHeight  = 5
	chromeHeight    = 20
	defaultWidth    = 120
	selectionMarked = "[x]"
	selectionEmpty  = "[ ]"
)

var columnWidths = map[order.Field]int{
	order.FieldProduct:     10,
	order.FieldDescription: 22,
	order.FieldLot:         11,
	order.FieldPreHop:      8,
	order.FieldDescOrder:   11,
	order.FieldPlant:       7,
	order.FieldLine:        6,
	order.FieldBattery:     8,
}

// dashboardView is the order grid, the release controls and the activity panel.
type dashboardView struct {
	app *App

	table   table.Model
	search  textinput.Model
	edit    textinput.Model
	logView viewport.Model
	spinner spinner.Model

	mode    inputMode
	column  int
	editID  string
	visible []order.Order
	relMode release.Mode
	running bool
	status  string
	width   int
	height  int
}

func newDashboardView(app *App) *dashboardView {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search product, description, lot, plant, line, battery"
	search.CharLimit = 64

	edit := textinput.New()
	edit.CharLimit = 128

	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	t := table.New(table.WithFocused(true), table.WithHeight(minTableHeight))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#1A1A1A")).
		Background(colorAccent)
	t.SetStyles(styles)

	mode := release.ModeIdenticalBatches
	if app.deps.Config != nil {
		if parsed, err := release.ParseMode(app.deps.Config.ReleaseMode()); err == nil {
			mode = parsed
		}
	}

	d := &dashboardView{
		app:     app,
		table:   t,
		search:  search,
		edit:    edit,
		logView: viewport.New(defaultWidth-4, logPanelHeight),
		spinner: s,
		relMode: mode,
		width:   defaultWidth,
	}
	d.refresh()
	d.refreshLog()
	return d
}

func (d *dashboardView) resize(width, height int) {
	d.width = width
	d.height = height
	d.table.SetHeight(max(minTableHeight, height-chromeHeight))
	d.logView.Width = max(20, width-4)
	d.logView.Height = logPanelHeight
	d.refreshLog()
}

// refresh rebuilds the grid rows from the store, keeping the cursor in range.
func (d *dashboardView) refresh() {
	deps := d.app.deps
	d.visible = deps.Store.Filter(d.search.Value())
	d.table.SetColumns(d.columns())
	rows := make([]table.Row, 0, len(d.visible))
	for _, o := range d.visible {
		mark := selectionEmpty
		if deps.Selection.Has(o.ID) {
			mark = selectionMarked
		}
		row := table.Row{mark}
		for _, f := range order.Fields {
			value, _ := o.Value(f)
			row = append(row, value)
		}
		row = append(row, statusLabel(o.Status))
		rows = append(rows, row)
	}
	d.table.SetRows(rows)
	if n := len(rows); n == 0 {
		d.table.SetCursor(0)
	} else if d.table.Cursor() >= n {
		d.table.SetCursor(n - 1)
	}
}

func (d *dashboardView) columns() []table.Column {
	cols := []table.Column{{Title: "Sel", Width: 3}}
	for i, f := range order.Fields {
		title := f.Label()
		if i == d.column {
			title = "▸" + title
		}
		cols = append(cols, table.Column{Title: title, Width: columnWidths[f]})
	}
	return append(cols, table.Column{Title: "Status", Width: 10})
}

// refreshLog re-renders the activity panel and scrolls to the newest entry.
func (d *dashboardView) refreshLog() {
	entries := d.app.deps.Log.Entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		tag := fmt.Sprintf("%-5s", e.Severity.Tag())
		lines = append(lines, fmt.Sprintf("%s %s %s",
			mutedStyle.Render(e.Timestamp.Local().Format(time.TimeOnly)),
			severityStyle(e.Severity).Render(tag),
			e.Message,
		))
	}
	d.logView.SetContent(strings.Join(lines, "\n"))
	d.logView.GotoBottom()
}

func (d *dashboardView) current() (order.Order, bool) {
	idx := d.table.Cursor()
	if idx < 0 || idx >= len(d.visible) {
		return order.Order{}, false
	}
	return d.visible[idx], true
}

func (d *dashboardView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !d.running {
			return nil
		}
		var cmd tea.Cmd
		d.spinner, cmd = d.spinner.Update(msg)
		return cmd

	case runRefreshMsg:
		d.refresh()
		if d.running {
			return refreshAfter(runRefreshEvery)
		}
		return nil

	case runFinishedMsg:
		d.running = false
		d.status = describeRun(msg.summary)
		d.refresh()
		d.refreshLog()
		return nil

	case tea.KeyMsg:
		switch d.mode {
		case modeSearch:
			return d.updateSearch(msg)
		case modeEdit:
			return d.updateEdit(msg)
		}
		if cmd, handled := d.handleKey(msg); handled {
			return cmd
		}
	}

	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return cmd
}

// handleKey runs dashboard shortcuts before the table sees the key, so the
// table's own paging bindings never shadow them.
func (d *dashboardView) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	deps := d.app.deps
	switch msg.String() {
	case "q":
		return tea.Quit, true

	case "n":
		o := deps.Store.Add()
		d.search.SetValue("")
		d.refresh()
		d.table.SetCursor(len(d.visible) - 1)
		d.status = fmt.Sprintf("Order %s added. Press e to fill it in.", o.ID)
		return nil, true

	case "left", "h":
		if d.column > 0 {
			d.column--
			d.table.SetColumns(d.columns())
		}
		return nil, true

	case "right", "l":
		if d.column < len(order.Fields)-1 {
			d.column++
			d.table.SetColumns(d.columns())
		}
		return nil, true

	case "e", "enter":
		return d.beginEdit(), true

	case "x":
		if d.app.deps.Engine.Running() {
			d.status = "A release run is in progress."
			return nil, true
		}
		if deps.Store.Len() == 0 {
			d.status = "There are no orders to clear."
			return nil, true
		}
		deps.Store.Clear()
		deps.Selection.Clear()
		d.refresh()
		d.status = "All orders cleared."
		return nil, true

	case "/":
		d.mode = modeSearch
		d.table.Blur()
		return d.search.Focus(), true

	case "esc":
		if d.search.Value() != "" {
			d.search.SetValue("")
			d.refresh()
			d.status = "Search cleared."
		}
		return nil, true

	case " ", "space":
		if o, ok := d.current(); ok {
			deps.Selection.Toggle(o.ID)
			d.refresh()
		}
		return nil, true

	case "a":
		d.toggleAllVisible()
		return nil, true

	case "m":
		return d.toggleMode(), true

	case "r":
		return d.startRelease(), true

	case "L":
		if deps.Engine.Running() {
			d.status = "A release run is in progress."
			return nil, true
		}
		return d.app.logout(), true
	}
	return nil, false
}

func (d *dashboardView) toggleAllVisible() {
	sel := d.app.deps.Selection
	if len(d.visible) == 0 {
		return
	}
	ids := make([]string, 0, len(d.visible))
	all := true
	for _, o := range d.visible {
		ids = append(ids, o.ID)
		if !sel.Has(o.ID) {
			all = false
		}
	}
	if all {
		sel.Remove(ids...)
	} else {
		sel.Add(ids...)
	}
	d.refresh()
}

func (d *dashboardView) toggleMode() tea.Cmd {
	next := d.relMode.Toggle()
	if cfg := d.app.deps.Config; cfg != nil {
		if err := cfg.SetReleaseMode(string(next)); err != nil {
			d.app.logger.Errorw("persist release mode", "error", err)
			d.status = fmt.Sprintf("Could not save the release mode: %v", err)
			return nil
		}
	}
	d.relMode = next
	d.status = "Release mode: " + next.Label() + "."
	return nil
}

func (d *dashboardView) startRelease() tea.Cmd {
	engine := d.app.deps.Engine
	handle, err := engine.Start(d.app.ctx, release.Request{Mode: d.relMode})
	if errors.Is(err, release.ErrRunInProgress) {
		d.status = "A release run is already in progress."
		return nil
	}
	if err != nil {
		d.app.logger.Errorw("start release", "error", err)
		d.status = fmt.Sprintf("Release could not start: %v", err)
		return nil
	}
	d.running = true
	d.status = ""
	d.mode = modeBrowse
	return tea.Batch(d.spinner.Tick, refreshAfter(runRefreshEvery), waitForRun(handle.Done))
}

func (d *dashboardView) beginEdit() tea.Cmd {
	o, ok := d.current()
	if !ok {
		d.status = "Select an order to edit."
		return nil
	}
	field := order.Fields[d.column]
	value, _ := o.Value(field)
	d.editID = o.ID
	d.edit.Prompt = field.Label() + ": "
	d.edit.SetValue(value)
	d.edit.CursorEnd()
	d.mode = modeEdit
	d.table.Blur()
	return d.edit.Focus()
}

func (d *dashboardView) updateEdit(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		d.endInput()
		d.status = "Edit cancelled."
		return nil
	case "enter":
		field := order.Fields[d.column]
		err := d.app.deps.Store.UpdateField(d.editID, field, strings.TrimSpace(d.edit.Value()))
		d.endInput()
		if err != nil {
			d.status = fmt.Sprintf("Edit failed: %v", err)
			return nil
		}
		d.status = fmt.Sprintf("%s updated.", field.Label())
		d.refresh()
		return nil
	}
	var cmd tea.Cmd
	d.edit, cmd = d.edit.Update(msg)
	return cmd
}

func (d *dashboardView) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		d.search.SetValue("")
		d.endInput()
		d.refresh()
		return nil
	case "enter":
		d.endInput()
		return nil
	}
	var cmd tea.Cmd
	d.search, cmd = d.search.Update(msg)
	d.refresh()
	return cmd
}

func (d *dashboardView) endInput() {
	d.mode = modeBrowse
	d.editID = ""
	d.edit.Blur()
	d.search.Blur()
	d.table.Focus()
}

func refreshAfter(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg { return runRefreshMsg{} })
}

func waitForRun(done <-chan release.Summary) tea.Cmd {
	return func() tea.Msg {
		return runFinishedMsg{summary: <-done}
	}
}

func describeRun(s release.Summary) string {
	switch s.Result {
	case release.ResultEmpty:
		return "No pending orders to release."
	case release.ResultConnectFailed:
		return "Release stopped: the backend connection failed."
	case release.ResultCancelled:
		return "Release run cancelled."
	}
	return fmt.Sprintf("Release finished: %d released, %d failed.", s.Released, s.Failed)
}

func (d *dashboardView) View() string {
	width := d.width
	if width <= 0 {
		width = defaultWidth
	}
	sections := []string{
		d.renderHeader(width),
		d.renderConfig(),
		d.renderGrid(width),
		d.renderFooter(),
		panelStyle.Width(max(20, width-2)).Render(panelTitleStyle.Render("ACTIVITY") + "\n" + d.logView.View()),
		mutedStyle.Render(d.help()),
	}
	if d.status != "" {
		sections = append(sections, statusLineStyle.Render(d.status))
	}
	return strings.Join(sections, "\n")
}

func (d *dashboardView) renderHeader(width int) string {
	deps := d.app.deps
	left := titleStyle.Render("ORDER RELEASE DESK") + "  " + subtitleStyle.Render("Wort consumption control")
	conn := lipgloss.NewStyle().Foreground(colorSuccess).Render("●") + " " + deps.Engine.BackendName() + " connected"
	right := conn
	if deps.Auth != nil {
		if user := deps.Auth.CurrentUser(); user != "" {
			right += "   " + mutedStyle.Render("user: "+user)
		}
	}
	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (d *dashboardView) renderConfig() string {
	chips := make([]string, 0, len(release.Modes))
	for _, m := range release.Modes {
		if m == d.relMode {
			chips = append(chips, activeChipStyle.Render(m.Label()))
		} else {
			chips = append(chips, inactiveChipStyle.Render(m.Label()))
		}
	}
	return "Release mode: " + strings.Join(chips, " ") + mutedStyle.Render("  (m to switch)")
}

func (d *dashboardView) renderGrid(width int) string {
	deps := d.app.deps
	title := panelTitleStyle.Render("Production orders") +
		mutedStyle.Render(fmt.Sprintf(" (%d records)", deps.Store.Len()))
	lines := []string{title}
	if d.mode == modeSearch || d.search.Value() != "" {
		lines = append(lines, d.search.View())
	}
	switch {
	case deps.Store.Len() == 0:
		lines = append(lines, "", mutedStyle.Render("No orders. Press n to add one."))
	case len(d.visible) == 0:
		lines = append(lines, "", mutedStyle.Render("No orders match the search."))
	default:
		lines = append(lines, d.table.View())
	}
	if d.mode == modeEdit {
		lines = append(lines, d.edit.View())
	}
	return panelStyle.Width(max(20, width-2)).Render(strings.Join(lines, "\n"))
}

func (d *dashboardView) renderFooter() string {
	deps := d.app.deps
	orders := deps.Store.Snapshot()
	counts := deps.Store.Counts()
	var scope string
	if n := deps.Selection.Len(); n > 0 {
		scope = fmt.Sprintf("%d selected (%d pending)", n, deps.Selection.PendingCount(orders))
	} else {
		scope = fmt.Sprintf("%d pending of %d total", counts.Pending, counts.Total)
	}
	legend := strings.Join([]string{
		statusStyle(order.StatusReleased).Render(fmt.Sprintf("%d released", counts.Released)),
		statusStyle(order.StatusFailed).Render(fmt.Sprintf("%d failed", counts.Failed)),
	}, "  ")
	action := fmt.Sprintf("r: Release (%d)", len(release.Resolve(orders, deps.Selection.IDs())))
	if d.running || deps.Engine.Running() {
		action = d.spinner.View() + " Processing..."
	}
	return scope + "   " + legend + "   " + action
}

func (d *dashboardView) help() string {
	switch d.mode {
	case modeSearch:
		return "type to filter · enter: keep filter · esc: clear"
	case modeEdit:
		return "enter: save · esc: cancel"
	}
	return "n add · e edit · ←/→ column · space select · a all · / search · x clear · m mode · r release · L sign out · q quit"
}
