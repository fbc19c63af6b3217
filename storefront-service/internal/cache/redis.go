package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "catalog:"

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context, query string) ([]*domain.Template, error) {
	data, err := r.client.Get(ctx, cacheKey(query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var templates []*domain.Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("unmarshal templates failed: %w", err)
	}

	return templates, nil
}

func (r RedisCache) Set(ctx context.Context, query string, templates []*domain.Template) error {
	data, err := json.Marshal(templates)
	if err != nil {
		return fmt.Errorf("marshal templates failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	if err := r.client.Set(ctx, cacheKey(query), data, r.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Flush drops every cached catalog query.
func (r RedisCache) Flush(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(query string) string {
	if query == "" {
		return keyPrefix + "all"
	}
	return fmt.Sprintf("%ssearch:%s", keyPrefix, query)
}
