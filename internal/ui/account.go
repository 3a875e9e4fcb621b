package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/marquee/internal/apperr"
	"github.com/five82/marquee/internal/auth"
	"github.com/five82/marquee/internal/notify"
)

// authSubmitMsg is emitted by the modal when the user submits the form.
type authSubmitMsg struct {
	register bool
	login    auth.LoginForm
	reg      auth.RegisterForm
}

type authDoneMsg struct {
	register bool
	username string
	err      error
}

// authModal is the sign-in / register dialog.
type authModal struct {
	register bool
	inputs   [3]textinput.Model // username, password, confirmation
	focus    int
	err      string
	busy     bool
}

func newAuthModal(username string, theme Theme) *authModal {
	m := &authModal{}
	placeholders := [3]string{"Username", "Password", "Repeat password"}
	for i := range m.inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 64
		ti.Width = 32
		ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Accent))
		if i > 0 {
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		}
		m.inputs[i] = ti
	}
	m.inputs[0].SetValue(username)
	if username != "" {
		m.focus = 1
	}
	m.inputs[m.focus].Focus()
	return m
}

func (a *authModal) fields() int {
	if a.register {
		return 3
	}
	return 2
}

func (a *authModal) setFocus(i int) {
	n := a.fields()
	a.focus = (i%n + n) % n
	for j := range a.inputs {
		if j == a.focus {
			a.inputs[j].Focus()
		} else {
			a.inputs[j].Blur()
		}
	}
}

// Update implements Modal.
func (a *authModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case authDoneMsg:
		a.busy = false
		if msg.err != nil {
			a.err = apperr.Message(msg.err)
			return a, nil, false
		}
		return a, nil, true
	case tea.KeyMsg:
		if a.busy {
			return a, nil, false
		}
		switch {
		case msg.String() == "esc":
			return a, nil, true
		case key.Matches(msg, keys.ToggleMode):
			a.register = !a.register
			a.err = ""
			a.setFocus(a.focus)
			return a, nil, false
		case key.Matches(msg, keys.Submit):
			if a.focus < a.fields()-1 {
				a.setFocus(a.focus + 1)
				return a, nil, false
			}
			return a.submit()
		case key.Matches(msg, keys.NextField):
			a.setFocus(a.focus + 1)
			return a, nil, false
		case key.Matches(msg, keys.PrevField):
			a.setFocus(a.focus - 1)
			return a, nil, false
		}
	}
	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return a, cmd, false
}

// submit validates locally and hands the form to the model.
func (a *authModal) submit() (Modal, tea.Cmd, bool) {
	username := strings.TrimSpace(a.inputs[0].Value())
	password := a.inputs[1].Value()
	out := authSubmitMsg{register: a.register}
	var err error
	if a.register {
		out.reg = auth.RegisterForm{Username: username, Password: password, PasswordConfirmation: a.inputs[2].Value()}
		err = out.reg.Validate()
	} else {
		out.login = auth.LoginForm{Username: username, Password: password}
		err = out.login.Validate()
	}
	if err != nil {
		a.err = apperr.Message(err)
		return a, nil, false
	}
	a.err = ""
	a.busy = true
	return a, func() tea.Msg { return out }, false
}

// View implements Modal.
func (a *authModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	title := "Sign in"
	if a.register {
		title = "Create account"
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 36)))
	b.WriteString("\n\n")
	for i := 0; i < a.fields(); i++ {
		b.WriteString(a.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case a.busy:
		b.WriteString(styles.WarningText.Render("Signing in..."))
	case a.err != "":
		b.WriteString(styles.DangerText.Render(a.err))
	}
	b.WriteString("\n\n")
	other := "register"
	if a.register {
		other = "sign in"
	}
	b.WriteString(styles.AccentText.Render("enter") + styles.MutedText.Render(" submit  ") +
		styles.AccentText.Render("ctrl+r") + styles.MutedText.Render(" "+other+"  ") +
		styles.AccentText.Render("esc") + styles.MutedText.Render(" cancel"))

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Accent)).
		Padding(1, 2).
		Width(48).
		Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)))
}

// updateModal routes a message to the open modal and handles its output.
func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	if submit, ok := msg.(authSubmitMsg); ok {
		return m, m.authenticate(submit)
	}
	next, cmd, closed := m.modal.Update(msg, m.keys)
	if closed {
		m.modal = nil
	} else {
		m.modal = next
	}
	return m, cmd
}

func (m Model) authenticate(s authSubmitMsg) tea.Cmd {
	if m.account == nil {
		return nil
	}
	ctx, account := m.ctx, m.account
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, ActionTimeout)
		defer cancel()
		if s.register {
			err := account.Register(ctx, s.reg)
			return authDoneMsg{register: true, username: s.reg.Username, err: err}
		}
		err := account.Login(ctx, s.login)
		return authDoneMsg{username: s.login.Username, err: err}
	}
}

func (m Model) handleAuthDone(msg authDoneMsg) (tea.Model, tea.Cmd) {
	if m.modal != nil {
		next, _, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = next
		}
	}
	if msg.err != nil {
		m.logger.Info("sign-in failed", "register", msg.register, "error", msg.err)
		return m, nil
	}
	m.prefs.LastUsername = msg.username
	m.savePrefs()
	title := "Signed in"
	if msg.register {
		title = "Account created"
	}
	m.notices.Notify(notify.Success(title, "Welcome, "+msg.username))
	if m.currentView == ViewTickets {
		return m, m.loadTicketSessions()
	}
	return m, nil
}

// toggleAccount opens the sign-in dialog, or signs out.
func (m Model) toggleAccount() (tea.Model, tea.Cmd) {
	if m.account == nil {
		return m, nil
	}
	if !m.account.IsAuthenticated() {
		m.modal = newAuthModal(m.prefs.LastUsername, m.theme)
		return m, nil
	}
	if err := m.account.Logout(); err != nil {
		m.logger.Warn("logout failed", "error", err)
	}
	m.notices.Notify(notify.Notice{Level: notify.LevelInfo, Title: "Signed out", Icon: "lock"})
	m.ticketRow = 0
	return m, nil
}
