// Package api talks to the storefront backend over HTTP. Business failures
// come back as decoded responses with Success unset; only transport problems
// are returned as errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/template_store/pkg/circuitbreaker"
	"github.com/fjod/template_store/storefront-client/internal/catalog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

var (
	// ErrBadResponse is returned when the backend answers with a body that
	// is not the expected JSON.
	ErrBadResponse = errors.New("unexpected response from storefront")

	errServerStatus = errors.New("server error status")
)

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type UserResponse struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type PurchaseRequest struct {
	TemplateID     int64  `json:"template_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type PurchaseResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id,omitempty"`
	TemplateName  string `json:"template_name,omitempty"`
}

type DownloadResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	TemplateName string `json:"template_name,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
}

type PurchasedTemplate struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	PurchaseDate string `json:"purchase_date"`
}

type DashboardResponse struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message,omitempty"`
	Templates []PurchasedTemplate `json:"templates"`
}

type Client struct {
	baseURL    *url.URL
	breakerCfg circuitbreaker.Config
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	logger     *zap.Logger

	mu   sync.Mutex
	http *http.Client
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.http.Transport = otelhttp.NewTransport(rt) }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(c *Client) { c.breakerCfg = cfg }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid storefront url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid storefront url %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    u,
		breakerCfg: circuitbreaker.DefaultConfig("storefront-api"),
		logger:     zap.NewNop(),
		http: &http.Client{
			Jar:       jar,
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			// /logout answers with a redirect home; the body is never needed
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = circuitbreaker.New[*http.Response](c.breakerCfg, c.logger)
	return c, nil
}

// ResetSession drops every cookie, leaving the client anonymous.
func (c *Client) ResetSession() {
	jar, _ := cookiejar.New(nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	next := *c.http
	next.Jar = jar
	c.http = &next
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// GET /api/user
func (c *Client) CurrentUser(ctx context.Context) (*UserResponse, error) {
	var out UserResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// POST /login
func (c *Client) Login(ctx context.Context, email, password string) (*StatusResponse, error) {
	form := url.Values{"email": {email}, "password": {password}}
	var out StatusResponse
	if err := c.doForm(ctx, "/login", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// POST /register
func (c *Client) Register(ctx context.Context, username, email, password string) (*StatusResponse, error) {
	form := url.Values{"username": {username}, "email": {email}, "password": {password}}
	var out StatusResponse
	if err := c.doForm(ctx, "/register", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout hits /logout and ignores whatever the server answers with.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/logout", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	return nil
}

// Templates loads the backend catalog from /api/templates.
func (c *Client) Templates(ctx context.Context) ([]catalog.Entry, error) {
	var out []catalog.Entry
	if err := c.doJSON(ctx, http.MethodGet, "/api/templates", nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// POST /api/purchase
func (c *Client) Purchase(ctx context.Context, templateID int64, idempotencyKey string) (*PurchaseResponse, error) {
	body, err := json.Marshal(PurchaseRequest{TemplateID: templateID, IdempotencyKey: idempotencyKey})
	if err != nil {
		return nil, err
	}

	var out PurchaseResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/purchase", bytes.NewReader(body), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GET /api/download/{id}
func (c *Client) Download(ctx context.Context, templateID int64) (*DownloadResponse, error) {
	var out DownloadResponse
	path := "/api/download/" + strconv.FormatInt(templateID, 10)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Purchases lists the templates bought by the current user (GET /dashboard).
func (c *Client) Purchases(ctx context.Context) (*DashboardResponse, error) {
	var out DashboardResponse
	if err := c.doJSON(ctx, http.MethodGet, "/dashboard", nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.send(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(out); err != nil {
		c.logger.Warn("undecodable response",
			zap.String("method", method), zap.String("path", path), zap.Int("status", resp.StatusCode), zap.Error(err))
		return fmt.Errorf("%s %s: %w (status %d)", method, path, ErrBadResponse, resp.StatusCode)
	}
	return nil
}

// send runs the request through the breaker. 5xx answers count against the
// breaker but are still handed back so their JSON body can be read.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.mu.Lock()
	hc := c.http
	c.mu.Unlock()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := hc.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		c.logger.Warn("storefront server error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return resp, nil
	}
	if err != nil {
		if circuitbreaker.IsOpen(err) {
			c.logger.Warn("storefront breaker open", zap.String("path", path))
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}
