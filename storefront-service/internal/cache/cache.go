package cache

import (
	"context"
	"errors"

	"github.com/fjod/template_store/storefront-service/domain"
)

// CatalogCache keeps rendered catalog queries. The key is the normalized
// search query; the empty key holds the full catalog.
type CatalogCache interface {
	Get(ctx context.Context, query string) ([]*domain.Template, error)
	Set(ctx context.Context, query string, templates []*domain.Template) error
	Flush(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")
