package tui

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fjod/template_store/storefront-client/internal/api"
	"github.com/fjod/template_store/storefront-client/internal/auth"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/fjod/template_store/storefront-client/internal/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	loggedIn  atomic.Bool
	logoutErr error

	userCalls     atomic.Int32
	purchaseCalls atomic.Int32
	logoutCalls   atomic.Int32
}

func (b *fakeBackend) CurrentUser(context.Context) (*api.UserResponse, error) {
	b.userCalls.Add(1)
	if !b.loggedIn.Load() {
		return &api.UserResponse{Success: false}, nil
	}
	return &api.UserResponse{Success: true, User: &api.User{ID: 1, Username: "alice", Email: "alice@example.com"}}, nil
}

func (b *fakeBackend) Login(_ context.Context, _, password string) (*api.StatusResponse, error) {
	if password != "secret" {
		return &api.StatusResponse{Success: false, Message: "Неверный email или пароль"}, nil
	}
	b.loggedIn.Store(true)
	return &api.StatusResponse{Success: true}, nil
}

func (b *fakeBackend) Register(context.Context, string, string, string) (*api.StatusResponse, error) {
	return &api.StatusResponse{Success: true}, nil
}

func (b *fakeBackend) Logout(context.Context) error {
	b.logoutCalls.Add(1)
	b.loggedIn.Store(false)
	return b.logoutErr
}

func (b *fakeBackend) Purchase(_ context.Context, id int64, _ string) (*api.PurchaseResponse, error) {
	b.purchaseCalls.Add(1)
	return &api.PurchaseResponse{Success: true, TemplateName: "Интернет-магазин", TransactionID: "tx"}, nil
}

func (b *fakeBackend) Download(context.Context, int64) (*api.DownloadResponse, error) {
	return &api.DownloadResponse{Success: true, Message: `Шаблон "Интернет-магазин" готов к скачиванию!`}, nil
}

type harness struct {
	backend *fakeBackend
	ctrl    *flow.Controller
	auth    *auth.Context
	reloads atomic.Int32
}

func newModel(t *testing.T, loggedIn bool) (Model, *harness) {
	t.Helper()
	h := &harness{backend: &fakeBackend{}}
	h.backend.loggedIn.Store(loggedIn)

	cat := catalog.New(catalog.Builtin())
	h.auth = auth.NewContext(h.backend, zap.NewNop())
	h.ctrl = flow.NewController(cat, h.backend, h.auth, zap.NewNop())
	h.auth.OnReload(func() {
		h.reloads.Add(1)
		h.ctrl.Reset()
	})

	m := New(context.Background(), Deps{Catalog: cat, Controller: h.ctrl, Auth: h.auth, Logger: zap.NewNop()})
	m = feed(t, m, m.checkAuth())
	return m, h
}

func feed(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press sends a key and runs the command it returns, if any, feeding the
// resulting message back in. Cursor blink commands are skipped.
func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	if cmd == nil || key.Type == tea.KeyRunes {
		return m
	}
	msg := cmd()
	switch msg.(type) {
	case flowMsg, sessionMsg, loginMsg, logoutMsg:
		next, follow := m.Update(msg)
		m = next.(Model)
		if follow != nil {
			if sm, ok := follow().(sessionMsg); ok {
				m = feed(t, m, sm)
			}
		}
	}
	return m
}

func typeText(t *testing.T, m Model, s string) Model {
	return press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func TestSearch_FiltersGallery(t *testing.T) {
	m, _ := newModel(t, false)
	assert.Len(t, m.gallery.Cards(), 6)

	m = typeText(t, m, "блог")
	assert.Equal(t, []int64{4}, m.gallery.IDs())
	assert.Contains(t, m.View(), "Блог Платформа")
	assert.NotContains(t, m.View(), "Лендинг Пейдж")

	m = typeText(t, m, "zzz")
	assert.Empty(t, m.gallery.IDs())
	assert.Contains(t, m.View(), "Ничего не найдено")
}

func TestNav_ShowsGreeting(t *testing.T) {
	anon, _ := newModel(t, false)
	assert.Contains(t, anon.View(), "Войти")
	assert.NotContains(t, anon.View(), "Привет")

	m, _ := newModel(t, true)
	assert.Contains(t, m.View(), "Привет, alice")
	assert.NotContains(t, m.View(), "[ctrl+l] Войти")
}

func TestPurchase_EndToEnd(t *testing.T) {
	m, h := newModel(t, true)

	m = press(t, m, down)
	m = press(t, m, enter)
	require.Equal(t, modePurchase, m.mode)
	assert.Contains(t, m.View(), "Покупка: Интернет-магазин")

	// empty form: validation only, nothing sent
	userCalls := h.backend.userCalls.Load()
	m = press(t, m, enter)
	assert.Equal(t, flow.MsgFillAllFields, m.errMsg)
	assert.Equal(t, flow.Form, m.flow.State())
	assert.Equal(t, userCalls, h.backend.userCalls.Load())

	m = typeText(t, m, "Алиса")
	m = press(t, m, tab)
	m = typeText(t, m, "alice@example.com")
	m = press(t, m, enter)
	require.Equal(t, flow.Payment, m.flow.State())
	assert.NotEmpty(t, m.qr)
	assert.Contains(t, m.View(), "QR-код для оплаты")

	m = press(t, m, enter)
	require.Equal(t, flow.DownloadReady, m.flow.State())
	assert.Contains(t, m.View(), "Скачать Интернет-магазин")
	assert.Equal(t, int32(1), h.backend.purchaseCalls.Load())

	m = press(t, m, enter)
	assert.Equal(t, modeBrowse, m.mode)
	assert.False(t, m.flow.Visible())
	assert.Contains(t, m.View(), "готов к скачиванию")
}

func TestPurchase_AnonymousGoesToLogin(t *testing.T) {
	m, h := newModel(t, false)

	m = press(t, m, enter)
	m = typeText(t, m, "Алиса")
	m = press(t, m, tab)
	m = typeText(t, m, "alice@example.com")
	m = press(t, m, enter)

	assert.Equal(t, modeLogin, m.mode)
	assert.True(t, m.flow.LoginRequested())
	assert.Equal(t, int32(0), h.backend.purchaseCalls.Load())

	m = typeText(t, m, "alice@example.com")
	m = press(t, m, tab)
	m = typeText(t, m, "wrong")
	m = press(t, m, enter)
	assert.Equal(t, modeLogin, m.mode)
	assert.Equal(t, "Неверный email или пароль", m.errMsg)

	m.loginPassword.SetValue("secret")
	m = press(t, m, enter)
	assert.Equal(t, modeBrowse, m.mode)
	assert.True(t, m.session.Authenticated)
	assert.Contains(t, m.View(), "Привет, alice")
}

func TestEsc_ClosesModal(t *testing.T) {
	m, _ := newModel(t, true)

	m = press(t, m, enter)
	require.True(t, m.flow.Visible())

	m = press(t, m, esc)
	assert.Equal(t, modeBrowse, m.mode)
	assert.False(t, m.flow.Visible())
}

func TestLogout_AlwaysReloads(t *testing.T) {
	for _, logoutErr := range []error{nil, errors.New("connection reset")} {
		m, h := newModel(t, true)
		h.backend.logoutErr = logoutErr

		m = typeText(t, m, "блог")
		m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlO})

		assert.Equal(t, int32(1), h.backend.logoutCalls.Load())
		assert.Equal(t, int32(1), h.reloads.Load())
		assert.Len(t, m.gallery.Cards(), 6)
		assert.Empty(t, m.search.Value())
		assert.False(t, m.session.Authenticated)
		assert.Contains(t, m.View(), "Войти")
	}
}

func TestEsc_DropsLateAnswer(t *testing.T) {
	t.Run("proceed", func(t *testing.T) {
		m, _ := newModel(t, true)
		m = press(t, m, enter)
		m.name.SetValue("Алиса")
		m.email.SetValue("alice@example.com")

		next, cmd := m.Update(enter)
		m = next.(Model)
		require.NotNil(t, cmd)
		m = press(t, m, esc)

		m = feed(t, m, cmd())
		assert.Equal(t, modeBrowse, m.mode)
		assert.False(t, m.flow.Visible())
		assert.Empty(t, m.errMsg)
		assert.NotContains(t, m.View(), "invalid transition")
	})

	t.Run("confirm", func(t *testing.T) {
		m, h := newModel(t, true)
		m = press(t, m, enter)
		m = typeText(t, m, "Алиса")
		m = press(t, m, tab)
		m = typeText(t, m, "alice@example.com")
		m = press(t, m, enter)
		require.Equal(t, flow.Payment, m.flow.State())

		next, cmd := m.Update(enter)
		m = next.(Model)
		require.NotNil(t, cmd)
		m = press(t, m, esc)

		m = feed(t, m, cmd())
		assert.Equal(t, int32(1), h.backend.purchaseCalls.Load())
		assert.Equal(t, modeBrowse, m.mode)
		assert.False(t, m.flow.Visible())
		assert.Empty(t, m.errMsg)
	})
}
