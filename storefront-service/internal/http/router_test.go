package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/template_store/storefront-service/internal/cache"
	"github.com/fjod/template_store/storefront-service/internal/repository"
	"github.com/fjod/template_store/storefront-service/internal/service"
	"github.com/fjod/template_store/storefront-service/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	*httptest.Server
	client   *http.Client
	filesDir string
}

func newTestServer(t *testing.T, health func(ctx context.Context) error) *testServer {
	t.Helper()

	repo, err := repository.NewRepository(":memory:")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations())
	t.Cleanup(func() { repo.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zap.NewNop()
	sessions := session.NewRedisStore(rdb, time.Hour)
	filesDir := t.TempDir()

	router := NewRouter(RouterConfig{
		RequestTimeout: 5 * time.Second,
		Sessions:       sessions,
		Health:         health,
		Logger:         log,
	}, Handlers{
		Templates: NewTemplateHandler(service.NewCatalogService(repo, cache.NewRedisCache(rdb), log), 5*time.Second, log),
		Auth:      NewAuthHandler(service.NewAuthService(repo, log), sessions, 5*time.Second, log),
		Purchases: NewPurchaseHandler(service.NewPurchaseService(repo, log), 5*time.Second, filesDir, log),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &testServer{Server: srv, client: client, filesDir: filesDir}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values) *http.Response {
	return s.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func (s *testServer) postJSON(t *testing.T, path, body string) *http.Response {
	return s.do(t, http.MethodPost, path, strings.NewReader(body), "application/json")
}

func (s *testServer) get(t *testing.T, path string) *http.Response {
	return s.do(t, http.MethodGet, path, nil, "")
}

func (s *testServer) register(t *testing.T, username string) {
	t.Helper()
	resp := s.postForm(t, "/register", url.Values{
		"username": {username},
		"email":    {username + "@example.com"},
		"password": {"secret"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestTemplates_List(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/api/templates")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	templates := decode[[]TemplateResponse](t, resp)
	require.Len(t, templates, 6)
	assert.Equal(t, "Интернет-магазин", templates[1].Name)
	assert.Equal(t, int64(4990), templates[1].Price)
}

func TestTemplates_Search(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/api/search?q="+url.QueryEscape("БЛОГ"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	templates := decode[[]TemplateResponse](t, resp)
	require.Len(t, templates, 1)
	assert.Equal(t, int64(4), templates[0].ID)
}

func TestCurrentUser_Anonymous(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/api/user")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[UserResponse](t, resp)
	assert.False(t, body.Success)
	assert.Nil(t, body.User)
}

func TestRegister_LoginAndCurrentUser(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	body := decode[UserResponse](t, s.get(t, "/api/user"))
	require.True(t, body.Success)
	assert.Equal(t, "alice", body.User.Username)
	assert.Equal(t, "alice@example.com", body.User.Email)

	resp := s.get(t, "/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	body = decode[UserResponse](t, s.get(t, "/api/user"))
	assert.False(t, body.Success)

	resp = s.postForm(t, "/login", url.Values{"email": {"alice@example.com"}, "password": {"secret"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[StatusResponse](t, resp).Success)

	body = decode[UserResponse](t, s.get(t, "/api/user"))
	assert.True(t, body.Success)
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "bob")

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing fields",
			form:       url.Values{"username": {"x"}, "email": {""}, "password": {"p"}},
			wantStatus: http.StatusBadRequest,
			wantMsg:    msgMissingFields,
		},
		{
			name:       "email taken",
			form:       url.Values{"username": {"bob2"}, "email": {"bob@example.com"}, "password": {"p"}},
			wantStatus: http.StatusConflict,
			wantMsg:    msgEmailTaken,
		},
		{
			name:       "username taken",
			form:       url.Values{"username": {"bob"}, "email": {"new@example.com"}, "password": {"p"}},
			wantStatus: http.StatusConflict,
			wantMsg:    msgUsernameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.postForm(t, "/register", tt.form)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			body := decode[StatusResponse](t, resp)
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "carol")
	s.get(t, "/logout")

	resp := s.postForm(t, "/login", url.Values{"email": {"carol@example.com"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgLoginFailed, decode[StatusResponse](t, resp).Message)
}

func TestPurchase_RequiresSession(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.postJSON(t, "/api/purchase", `{"template_id":2}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode[StatusResponse](t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, msgUnauthorized, body.Message)
}

func TestPurchase_UnknownTemplate(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "dave")

	resp := s.postJSON(t, "/api/purchase", `{"template_id":999}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, msgTemplateNotFound, decode[StatusResponse](t, resp).Message)
}

func TestPurchase_BadBody(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "erin")

	resp := s.postJSON(t, "/api/purchase", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPurchase_DownloadAndDashboard(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "frank")

	resp := s.get(t, "/api/download/2")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, msgNotPurchased, decode[DownloadResponse](t, resp).Message)

	resp = s.postJSON(t, "/api/purchase", `{"template_id":2,"idempotency_key":"k-1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	purchase := decode[PurchaseResponse](t, resp)
	assert.True(t, purchase.Success)
	assert.Equal(t, msgPurchaseOK, purchase.Message)
	assert.Equal(t, "Интернет-магазин", purchase.TemplateName)
	assert.NotEmpty(t, purchase.TransactionID)

	// same key replays the first purchase
	resp = s.postJSON(t, "/api/purchase", `{"template_id":2,"idempotency_key":"k-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, purchase.TransactionID, decode[PurchaseResponse](t, resp).TransactionID)

	resp = s.get(t, "/api/download/2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	download := decode[DownloadResponse](t, resp)
	assert.True(t, download.Success)
	assert.Equal(t, `Шаблон "Интернет-магазин" готов к скачиванию!`, download.Message)
	assert.Equal(t, "/api/download/2/archive", download.DownloadURL)

	resp = s.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dashboard := decode[DashboardResponse](t, resp)
	require.Len(t, dashboard.Templates, 1)
	assert.Equal(t, int64(2), dashboard.Templates[0].ID)
	assert.Equal(t, time.Now().UTC().Format(dashboardDateLayout), dashboard.Templates[0].PurchaseDate)
}

func TestArchive(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "grace")

	require.NoError(t, os.MkdirAll(filepath.Join(s.filesDir, "templates"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.filesDir, "templates", "landing.zip"), []byte("zip-bytes"), 0o644))

	resp := s.get(t, "/api/download/5/archive")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.postJSON(t, "/api/purchase", `{"template_id":5}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.get(t, "/api/download/5/archive")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "landing.zip")
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(data))

	// purchased but archive missing on disk
	resp = s.postJSON(t, "/api/purchase", `{"template_id":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.get(t, "/api/download/1/archive")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDashboard_RequiresSession(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/dashboard")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	resp := s.get(t, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[StatusResponse](t, resp)
	assert.False(t, body.Success)
	assert.Equal(t, msgNotFound, body.Message)
}

func TestHealth(t *testing.T) {
	healthy := newTestServer(t, nil)
	resp := healthy.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[HealthResponse](t, resp).Status)

	down := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	resp = down.get(t, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "unavailable", decode[HealthResponse](t, resp).Status)
}

func TestRecoverer_ReturnsJSON(t *testing.T) {
	h := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, msgInternalError, body.Message)
}
