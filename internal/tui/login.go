package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// loginView is the credential form shown before the dashboard.
type loginView struct {
	app *App

	username   textinput.Model
	password   textinput.Model
	focus      int
	spinner    spinner.Model
	submitting bool
	err        string
}

func newLoginView(app *App) *loginView {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "User      "
	username.CharLimit = 64

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password  "
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorAccent)

	return &loginView{
		app:      app,
		username: username,
		password: password,
		spinner:  s,
	}
}

func (v *loginView) Init() tea.Cmd {
	v.focus = 0
	v.password.Blur()
	return tea.Batch(textinput.Blink, v.username.Focus())
}

func (v *loginView) reset() {
	v.username.SetValue("")
	v.password.SetValue("")
	v.err = ""
	v.submitting = false
	v.focus = 0
}

func (v *loginView) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !v.submitting {
			return nil
		}
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return cmd
	case tea.KeyMsg:
		if v.submitting {
			return nil
		}
		switch msg.String() {
		case "esc":
			return tea.Quit
		case "tab", "shift+tab", "up", "down":
			return v.toggleFocus()
		case "enter":
			if v.focus == 0 {
				return v.toggleFocus()
			}
			return v.submit()
		}
	}
	var cmd tea.Cmd
	if v.focus == 0 {
		v.username, cmd = v.username.Update(msg)
	} else {
		v.password, cmd = v.password.Update(msg)
	}
	return cmd
}

func (v *loginView) toggleFocus() tea.Cmd {
	if v.focus == 0 {
		v.focus = 1
		v.username.Blur()
		return v.password.Focus()
	}
	v.focus = 0
	v.password.Blur()
	return v.username.Focus()
}

func (v *loginView) submit() tea.Cmd {
	user := strings.TrimSpace(v.username.Value())
	pass := v.password.Value()
	if user == "" || pass == "" {
		v.err = "Enter a username and password."
		return nil
	}
	v.err = ""
	v.submitting = true
	authenticator := v.app.deps.Auth
	delay := v.app.loginDelay
	check := func() tea.Msg {
		if delay > 0 {
			time.Sleep(delay)
		}
		return loginResultMsg{ok: authenticator.Login(user, pass), user: user}
	}
	return tea.Batch(v.spinner.Tick, check)
}

func (v *loginView) View() string {
	lines := []string{
		titleStyle.Render("ORDER RELEASE DESK"),
		subtitleStyle.Render("Sign in to release production orders"),
		"",
		v.username.View(),
		v.password.View(),
		"",
	}
	switch {
	case v.submitting:
		lines = append(lines, v.spinner.View()+" Checking credentials...")
	case v.err != "":
		lines = append(lines, errorStyle.Render(v.err))
	default:
		lines = append(lines, mutedStyle.Render("enter: next/sign in · tab: switch field · esc: quit"))
	}
	if hint := strings.TrimSpace(v.app.deps.LoginHint); hint != "" {
		lines = append(lines, "", mutedStyle.Render(hint))
	}
	box := panelStyle.Width(56).Render(strings.Join(lines, "\n"))
	if v.app.width > 0 && v.app.height > 0 {
		return lipgloss.Place(v.app.width, v.app.height, lipgloss.Center, lipgloss.Center, box)
	}
	return box
}
