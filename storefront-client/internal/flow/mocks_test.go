package flow

import (
	"context"
	"sync"

	"github.com/fjod/template_store/storefront-client/internal/api"
	"github.com/fjod/template_store/storefront-client/internal/auth"
)

type MockBackend struct {
	mu           sync.Mutex
	PurchaseResp *api.PurchaseResponse
	PurchaseErr  error
	DownloadResp *api.DownloadResponse
	DownloadErr  error

	// Block, when set, holds Purchase until closed.
	Block   chan struct{}
	Started chan struct{}

	PurchaseCalls []PurchaseCall
	DownloadCalls []int64
}

type PurchaseCall struct {
	TemplateID int64
	Key        string
}

func (m *MockBackend) Purchase(_ context.Context, templateID int64, key string) (*api.PurchaseResponse, error) {
	m.mu.Lock()
	m.PurchaseCalls = append(m.PurchaseCalls, PurchaseCall{templateID, key})
	block, started := m.Block, m.Started
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	return m.PurchaseResp, m.PurchaseErr
}

func (m *MockBackend) Download(_ context.Context, templateID int64) (*api.DownloadResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DownloadCalls = append(m.DownloadCalls, templateID)
	return m.DownloadResp, m.DownloadErr
}

func (m *MockBackend) Calls() []PurchaseCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PurchaseCall(nil), m.PurchaseCalls...)
}

type MockSessions struct {
	Session auth.Session
	Err     error
	Calls   int
}

func (m *MockSessions) Refresh(context.Context) (auth.Session, error) {
	m.Calls++
	return m.Session, m.Err
}
