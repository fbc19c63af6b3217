// Package auth keeps the client's view of who is logged in. One Context is
// created per process; everything that needs the auth status asks it.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/template_store/storefront-client/internal/api"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type User struct {
	ID       int64
	Username string
	Email    string
}

// Session is a snapshot of one /api/user answer.
type Session struct {
	Authenticated bool
	User          User
	FetchedAt     time.Time
}

// Backend is the subset of the storefront API the auth context calls.
type Backend interface {
	CurrentUser(ctx context.Context) (*api.UserResponse, error)
	Login(ctx context.Context, email, password string) (*api.StatusResponse, error)
	Register(ctx context.Context, username, email, password string) (*api.StatusResponse, error)
	Logout(ctx context.Context) error
}

// RejectedError carries the backend's message when it refuses a login or
// registration.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	return e.Op + " rejected: " + e.Message
}

type Context struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	sfg     singleflight.Group

	mu      sync.Mutex
	current *Session
	reload  []func()
}

func NewContext(backend Backend, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Context{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
}

// OnReload registers a hook run after logout to return the client to a
// fresh, anonymous state.
func (c *Context) OnReload(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reload = append(c.reload, fn)
}

// Current returns the cached session, fetching it on first use.
func (c *Context) Current(ctx context.Context) (Session, error) {
	c.mu.Lock()
	cur := c.current
	c.mu.Unlock()
	if cur != nil {
		return *cur, nil
	}
	return c.Refresh(ctx)
}

// Refresh asks the backend again. Concurrent callers share one request.
func (c *Context) Refresh(ctx context.Context) (Session, error) {
	v, err, _ := c.sfg.Do("current", func() (interface{}, error) {
		resp, err := c.backend.CurrentUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check auth status: %w", err)
		}

		s := Session{FetchedAt: c.now()}
		if resp.Success && resp.User != nil {
			s.Authenticated = true
			s.User = User{ID: resp.User.ID, Username: resp.User.Username, Email: resp.User.Email}
		}

		c.mu.Lock()
		c.current = &s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		c.logger.Warn("auth check failed", zap.Error(err))
		return Session{}, err
	}
	return v.(Session), nil
}

// Invalidate forgets the cached session.
func (c *Context) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

func (c *Context) Login(ctx context.Context, email, password string) (Session, error) {
	resp, err := c.backend.Login(ctx, email, password)
	if err != nil {
		return Session{}, fmt.Errorf("login failed: %w", err)
	}
	if !resp.Success {
		return Session{}, &RejectedError{Op: "login", Message: resp.Message}
	}
	return c.Refresh(ctx)
}

func (c *Context) Register(ctx context.Context, username, email, password string) (Session, error) {
	resp, err := c.backend.Register(ctx, username, email, password)
	if err != nil {
		return Session{}, fmt.Errorf("register failed: %w", err)
	}
	if !resp.Success {
		return Session{}, &RejectedError{Op: "register", Message: resp.Message}
	}
	return c.Refresh(ctx)
}

// Logout calls the backend and then reloads, whatever the backend said.
// The logout error is logged and returned after the reload has run.
func (c *Context) Logout(ctx context.Context) error {
	err := c.backend.Logout(ctx)
	if err != nil {
		c.logger.Warn("logout request failed", zap.Error(err))
		err = fmt.Errorf("logout failed: %w", err)
	}

	c.mu.Lock()
	c.current = nil
	hooks := append([]func(){}, c.reload...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
	return err
}
