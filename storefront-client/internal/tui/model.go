// Package tui is the interactive storefront: the gallery with live search,
// the purchase modal and the login prompt, on top of bubbletea.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/fjod/template_store/storefront-client/internal/flow"
	"go.uber.org/zap"
)

const msgLoginFailed = "Ошибка входа"

type mode int

const (
	modeBrowse mode = iota
	modePurchase
	modeLogin
)

type Deps struct {
	Catalog    *catalog.Catalog
	Controller *flow.Controller
	Auth       *auth.Context
	Logger     *zap.Logger
}

type sessionMsg struct {
	session auth.Session
	err     error
}

type flowMsg struct {
	flow flow.Flow
	err  error
}

type loginMsg struct {
	session auth.Session
	err     error
}

type logoutMsg struct{ err error }

type Model struct {
	ctx  context.Context
	deps Deps

	mode    mode
	gallery catalog.Gallery
	cursor  int
	session auth.Session
	flow    flow.Flow
	qr      string
	busy    bool
	notice  string
	errMsg  string

	search        textinput.Model
	name          textinput.Model
	email         textinput.Model
	loginEmail    textinput.Model
	loginPassword textinput.Model
}

func New(ctx context.Context, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	m := Model{
		ctx:           ctx,
		deps:          deps,
		flow:          deps.Controller.Flow(),
		search:        newInput("Поиск шаблонов..."),
		name:          newInput("Имя"),
		email:         newInput("Email"),
		loginEmail:    newInput("Email"),
		loginPassword: newInput("Пароль"),
	}
	m.loginPassword.EchoMode = textinput.EchoPassword
	m.search.Focus()
	m.gallery.Replace(deps.Catalog.All())
	return m
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Width = 40
	return ti
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.checkAuth)
}

func (m Model) checkAuth() tea.Msg {
	s, err := m.deps.Auth.Current(m.ctx)
	return sessionMsg{session: s, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionMsg:
		if msg.err != nil {
			m.deps.Logger.Warn("auth check failed", zap.Error(msg.err))
			return m, nil
		}
		m.session = msg.session
		return m, nil

	case loginMsg:
		var rejected *auth.RejectedError
		switch {
		case errors.As(msg.err, &rejected):
			m.errMsg = rejected.Message
			return m, nil
		case msg.err != nil:
			m.deps.Logger.Warn("login failed", zap.Error(msg.err))
			m.errMsg = msgLoginFailed
			return m, nil
		}
		m.session = msg.session
		m = m.toBrowse()
		m.notice = auth.NavFor(m.session).Greeting
		return m, nil

	case flowMsg:
		return m.applyFlow(msg.flow, msg.err), nil

	case logoutMsg:
		return m.reload(msg.err), m.checkAuth

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modePurchase:
			return m.updatePurchase(msg)
		case modeLogin:
			return m.updateLogin(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyUp:
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case tea.KeyDown:
		if m.cursor < len(m.gallery.Cards())-1 {
			m.cursor++
		}
		return m, nil
	case tea.KeyEnter:
		ids := m.gallery.IDs()
		if len(ids) == 0 {
			return m, nil
		}
		f, err := m.deps.Controller.Open(ids[m.cursor])
		return m.applyFlow(f, err), nil
	case tea.KeyCtrlL:
		if m.session.Authenticated {
			return m, nil
		}
		return m.toLogin(), nil
	case tea.KeyCtrlO:
		if !m.session.Authenticated {
			return m, nil
		}
		return m, m.logout
	}

	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != before {
		m.gallery.Replace(m.deps.Catalog.Filter(m.search.Value()))
		m.cursor = 0
	}
	return m, cmd
}

func (m Model) updatePurchase(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.applyFlow(m.deps.Controller.Close(), nil), nil
	case tea.KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.errMsg = ""
		return m, m.step()
	case tea.KeyTab, tea.KeyShiftTab:
		if m.flow.State() == flow.Form {
			toggleFocus(&m.name, &m.email)
		}
		return m, nil
	}

	if m.flow.State() != flow.Form {
		return m, nil
	}
	var cmd tea.Cmd
	if m.name.Focused() {
		m.name, cmd = m.name.Update(msg)
	} else {
		m.email, cmd = m.email.Update(msg)
	}
	return m, cmd
}

// step is the network action behind enter for the current section.
func (m Model) step() tea.Cmd {
	ctrl := m.deps.Controller
	ctx := m.ctx
	switch m.flow.State() {
	case flow.Form:
		info := flow.CustomerInfo{Name: m.name.Value(), Email: m.email.Value()}
		return func() tea.Msg {
			f, err := ctrl.Proceed(ctx, info)
			return flowMsg{flow: f, err: err}
		}
	case flow.Payment:
		return func() tea.Msg {
			f, err := ctrl.Confirm(ctx)
			return flowMsg{flow: f, err: err}
		}
	case flow.DownloadReady:
		return func() tea.Msg {
			f, err := ctrl.Download(ctx)
			return flowMsg{flow: f, err: err}
		}
	}
	return nil
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m.toBrowse(), nil
	case tea.KeyTab, tea.KeyShiftTab:
		toggleFocus(&m.loginEmail, &m.loginPassword)
		return m, nil
	case tea.KeyEnter:
		email, password := m.loginEmail.Value(), m.loginPassword.Value()
		ac, ctx := m.deps.Auth, m.ctx
		m.errMsg = ""
		return m, func() tea.Msg {
			s, err := ac.Login(ctx, email, password)
			return loginMsg{session: s, err: err}
		}
	}

	var cmd tea.Cmd
	if m.loginEmail.Focused() {
		m.loginEmail, cmd = m.loginEmail.Update(msg)
	} else {
		m.loginPassword, cmd = m.loginPassword.Update(msg)
	}
	return m, cmd
}

func (m Model) logout() tea.Msg {
	return logoutMsg{err: m.deps.Auth.Logout(m.ctx)}
}

func (m Model) applyFlow(f flow.Flow, err error) Model {
	m.busy = false
	m.flow = f

	if err != nil {
		// a busy or stale answer belongs to a modal the user already left
		if !errors.Is(err, flow.ErrBusy) && !errors.Is(err, flow.ErrInvalidTransition) {
			m.errMsg = flow.Message(err)
		}
		return m
	}

	switch {
	case f.Visible():
		if m.mode != modePurchase {
			m.mode = modePurchase
			m.errMsg = ""
			m.name.SetValue("")
			m.email.SetValue("")
			m.search.Blur()
			m.email.Blur()
			m.name.Focus()
		}
		m.qr = ""
		if f.State() == flow.Payment {
			if qr, err := flow.RenderQR(f.PaymentCode()); err == nil {
				m.qr = qr
			} else {
				m.deps.Logger.Warn("payment code render failed", zap.Error(err))
			}
		}
	case f.LoginRequested():
		m = m.toLogin()
	default:
		m = m.toBrowse()
		if f.Notice() != "" {
			m.notice = f.Notice()
		}
	}
	return m
}

// reload puts the screen back to how a fresh start shows it.
func (m Model) reload(logoutErr error) Model {
	m = m.toBrowse()
	m.session = auth.Session{}
	m.flow = m.deps.Controller.Flow()
	m.search.SetValue("")
	m.gallery.Replace(m.deps.Catalog.All())
	m.cursor = 0
	m.notice = ""
	if logoutErr != nil {
		m.deps.Logger.Warn("logout failed", zap.Error(logoutErr))
	}
	return m
}

func (m Model) toBrowse() Model {
	m.mode = modeBrowse
	m.busy = false
	m.errMsg = ""
	m.name.Blur()
	m.email.Blur()
	m.loginEmail.Blur()
	m.loginPassword.Blur()
	m.search.Focus()
	return m
}

func (m Model) toLogin() Model {
	m.mode = modeLogin
	m.search.Blur()
	m.loginEmail.SetValue("")
	m.loginPassword.SetValue("")
	m.loginPassword.Blur()
	m.loginEmail.Focus()
	return m
}

func toggleFocus(a, b *textinput.Model) {
	if a.Focused() {
		a.Blur()
		b.Focus()
	} else {
		b.Blur()
		a.Focus()
	}
}

func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.navView())
	sb.WriteString("\n\n")

	switch m.mode {
	case modePurchase:
		sb.WriteString(m.modalView())
	case modeLogin:
		sb.WriteString(m.loginView())
	default:
		sb.WriteString(m.search.View())
		sb.WriteString("\n\n")
		sb.WriteString(m.galleryView())
	}

	if m.errMsg != "" {
		sb.WriteString("\n" + errorStyle.Render(m.errMsg))
	}
	if m.notice != "" && m.mode == modeBrowse {
		sb.WriteString("\n" + noticeStyle.Render(m.notice))
	}
	sb.WriteString("\n" + helpStyle.Render(m.help()))
	return sb.String()
}

func (m Model) navView() string {
	nav := auth.NavFor(m.session)
	title := titleStyle.Render("Template Store")
	if nav.ShowUserMenu {
		return title + "  " + greetingStyle.Render(nav.Greeting) + helpStyle.Render("  [ctrl+o] Выйти")
	}
	return title + helpStyle.Render("  [ctrl+l] Войти")
}

func (m Model) galleryView() string {
	cards := m.gallery.Cards()
	if len(cards) == 0 {
		return helpStyle.Render("Ничего не найдено")
	}

	rendered := make([]string, 0, len(cards))
	for i, c := range cards {
		style := cardStyle
		if i == m.cursor {
			style = selectedCardStyle
		}
		body := lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render(c.Name),
			c.Description,
			priceStyle.Render(c.Price)+"  "+helpStyle.Render("[enter] "+catalog.BuyLabel),
		)
		rendered = append(rendered, style.Render(body))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rendered...)
}

func (m Model) modalView() string {
	var body []string
	body = append(body, titleStyle.Render(m.flow.Title()), "")

	sections := m.flow.Sections()
	switch {
	case sections.Form:
		body = append(body, m.name.View(), m.email.View(), "", helpStyle.Render("[enter] Перейти к оплате"))
	case sections.Payment:
		body = append(body, "QR-код для оплаты", m.qr,
			priceStyle.Render(catalog.FormatPrice(m.flow.Entry().Price)),
			helpStyle.Render("[enter] Я оплатил"))
	case sections.Download:
		body = append(body, helpStyle.Render("[enter] "+m.flow.DownloadLabel()))
	}
	if m.busy {
		body = append(body, helpStyle.Render("..."))
	}
	return modalStyle.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func (m Model) loginView() string {
	return modalStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Вход"),
		"",
		m.loginEmail.View(),
		m.loginPassword.View(),
		"",
		helpStyle.Render("[enter] Войти"),
	))
}

func (m Model) help() string {
	switch m.mode {
	case modePurchase:
		return "tab: поле • enter: далее • esc: закрыть"
	case modeLogin:
		return "tab: поле • enter: войти • esc: назад"
	default:
		return "↑/↓: выбор • enter: купить • esc: выход"
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithContext(ctx), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
