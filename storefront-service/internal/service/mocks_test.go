package service

import (
	"context"
	"sync"

	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/fjod/template_store/storefront-service/internal/cache"
	r "github.com/fjod/template_store/storefront-service/internal/repository"
)

// MockRepository implements r.RepoInterface for testing
type MockRepository struct {
	mu sync.Mutex

	Templates      []*domain.Template
	TemplatesErr   error
	GetAllCalls    int
	SearchCalls    int
	Users          []*domain.User
	Purchases      []*domain.Purchase
	Events         []*r.OutboxEvent
	CreateErr      error
	Purchased      []*domain.PurchasedTemplate
	HasPurchase    bool
	HasPurchaseErr error
}

func (m *MockRepository) GetAllTemplates(context.Context) ([]*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetAllCalls++
	return m.Templates, m.TemplatesErr
}

func (m *MockRepository) SearchTemplates(_ context.Context, query string) ([]*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchCalls++
	if m.TemplatesErr != nil {
		return nil, m.TemplatesErr
	}
	var found []*domain.Template
	for _, t := range m.Templates {
		if t.Category == query {
			found = append(found, t)
		}
	}
	return found, nil
}

func (m *MockRepository) GetTemplate(_ context.Context, id int64) (*domain.Template, error) {
	for _, t := range m.Templates {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, r.ErrTemplateNotFound
}

func (m *MockRepository) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	user.ID = int64(len(m.Users) + 1)
	m.Users = append(m.Users, user)
	return nil
}

func (m *MockRepository) findUser(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if match(u) {
			return u, nil
		}
	}
	return nil, r.ErrUserNotFound
}

func (m *MockRepository) GetUser(_ context.Context, id int64) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.ID == id })
}

func (m *MockRepository) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.Email == email })
}

func (m *MockRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.Username == username })
}

func (m *MockRepository) CreatePurchase(_ context.Context, p *domain.Purchase, event *r.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	p.ID = int64(len(m.Purchases) + 1)
	m.Purchases = append(m.Purchases, p)
	if event != nil {
		m.Events = append(m.Events, event)
	}
	return nil
}

func (m *MockRepository) GetPurchaseByIdempotencyKey(_ context.Context, userID int64, key string) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Purchases {
		if p.UserID == userID && p.IdempotencyKey == key {
			return p, nil
		}
	}
	return nil, r.ErrPurchaseNotFound
}

func (m *MockRepository) HasCompletedPurchase(context.Context, int64, int64) (bool, error) {
	return m.HasPurchase, m.HasPurchaseErr
}

func (m *MockRepository) ListCompletedPurchases(context.Context, int64) ([]*domain.PurchasedTemplate, error) {
	return m.Purchased, nil
}

func (m *MockRepository) Ping(context.Context) error { return nil }

func (m *MockRepository) Close() error { return nil }

// MockCache implements cache.CatalogCache for testing
type MockCache struct {
	mu      sync.Mutex
	entries map[string][]*domain.Template
	GetErr  error
	SetKeys []string
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string][]*domain.Template)}
}

func (m *MockCache) Get(_ context.Context, query string) ([]*domain.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	t, ok := m.entries[query]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return t, nil
}

func (m *MockCache) Set(_ context.Context, query string, templates []*domain.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[query] = templates
	m.SetKeys = append(m.SetKeys, query)
	return nil
}

func (m *MockCache) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]*domain.Template)
	return nil
}

func (m *MockCache) setCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.SetKeys)
}

func sampleTemplates() []*domain.Template {
	return []*domain.Template{
		{ID: 1, Name: "Бизнес Портфолио", Price: 2990, Category: "бизнес"},
		{ID: 2, Name: "Интернет-магазин", Price: 4990, Category: "магазин"},
		{ID: 4, Name: "Блог Платформа", Price: 2490, Category: "блог"},
	}
}
