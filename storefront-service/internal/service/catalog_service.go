package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/fjod/template_store/storefront-service/internal/cache"
	"github.com/fjod/template_store/storefront-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type CatalogService struct {
	repo   repository.RepoInterface
	cache  cache.CatalogCache
	sfg    singleflight.Group // Prevents cache stampede
	logger *zap.Logger
}

func NewCatalogService(repo repository.RepoInterface, cache cache.CatalogCache, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

func (s *CatalogService) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	return s.query(ctx, "")
}

// Search returns the templates whose name, description or category contain
// query, ignoring case. An empty query returns the whole catalog.
func (s *CatalogService) Search(ctx context.Context, query string) ([]*domain.Template, error) {
	return s.query(ctx, strings.ToLower(query))
}

func (s *CatalogService) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	t, err := s.repo.GetTemplate(ctx, id)
	if errors.Is(err, repository.ErrTemplateNotFound) {
		return nil, ErrTemplateNotFound
	}
	return t, err
}

func (s *CatalogService) query(ctx context.Context, query string) ([]*domain.Template, error) {
	v, err, _ := s.sfg.Do(query, func() (interface{}, error) {
		templates, err := s.cache.Get(ctx, query)
		if err == nil {
			return templates, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("catalog cache get failed", zap.String("query", query), zap.Error(err))
		}

		if query == "" {
			templates, err = s.repo.GetAllTemplates(ctx)
		} else {
			templates, err = s.repo.SearchTemplates(ctx, query)
		}
		if err != nil {
			return nil, err
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(ctx, query, templates); errSet != nil {
				s.logger.Warn("catalog cache set failed", zap.String("query", query), zap.Error(errSet))
			}
		}()

		return templates, nil
	})

	if err != nil {
		return nil, err
	}

	return v.([]*domain.Template), nil
}
