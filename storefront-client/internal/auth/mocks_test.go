package auth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fjod/template_store/storefront-client/internal/api"
)

type MockBackend struct {
	mu        sync.Mutex
	User      *api.User
	UserErr   error
	LoginResp *api.StatusResponse
	LoginErr  error
	RegResp   *api.StatusResponse
	LogoutErr error

	// Gate, when set, blocks CurrentUser until closed.
	Gate chan struct{}

	UserCalls   atomic.Int32
	LogoutCalls atomic.Int32
}

func (m *MockBackend) CurrentUser(context.Context) (*api.UserResponse, error) {
	m.UserCalls.Add(1)
	if m.Gate != nil {
		<-m.Gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	if m.User == nil {
		return &api.UserResponse{Success: false, Message: "Пользователь не авторизован"}, nil
	}
	u := *m.User
	return &api.UserResponse{Success: true, User: &u}, nil
}

func (m *MockBackend) Login(_ context.Context, email, _ string) (*api.StatusResponse, error) {
	if m.LoginErr != nil {
		return nil, m.LoginErr
	}
	if m.LoginResp.Success {
		m.SetUser(&api.User{ID: 1, Username: "alice", Email: email})
	}
	return m.LoginResp, nil
}

func (m *MockBackend) Register(_ context.Context, username, email, _ string) (*api.StatusResponse, error) {
	if m.RegResp.Success {
		m.SetUser(&api.User{ID: 2, Username: username, Email: email})
	}
	return m.RegResp, nil
}

func (m *MockBackend) Logout(context.Context) error {
	m.LogoutCalls.Add(1)
	if m.LogoutErr != nil {
		return m.LogoutErr
	}
	m.SetUser(nil)
	return nil
}

func (m *MockBackend) SetUser(u *api.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.User = u
}
