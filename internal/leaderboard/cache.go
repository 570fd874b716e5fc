// Package leaderboard serves the points ranking through an advisory Redis cache.
// Cached pages are only ever displayed; eligibility and awards always read PostgreSQL.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/membership-portal/backend/internal/models"
)

const (
	versionKey   = "leaderboard:version"
	DefaultLimit = 25
	MaxLimit     = 100
)

// Source loads a ranking page from the database.
type Source interface {
	Leaderboard(ctx context.Context, offset, limit int) ([]models.UserPublic, error)
}

// Cache wraps a Source with versioned page caching.
type Cache struct {
	src    Source
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCache creates a leaderboard cache. A nil rdb disables caching.
func NewCache(src Source, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{src: src, rdb: rdb, ttl: ttl, logger: logger}
}

// Page returns one page of the ranking. offset and limit are clamped to sane bounds.
func (c *Cache) Page(ctx context.Context, offset, limit int) ([]models.UserPublic, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if c.rdb == nil || c.ttl <= 0 {
		return c.src.Leaderboard(ctx, offset, limit)
	}

	key, err := c.pageKey(ctx, offset, limit)
	if err != nil {
		c.logger.Warn("leaderboard cache unavailable", zap.Error(err))
		return c.src.Leaderboard(ctx, offset, limit)
	}
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var page []models.UserPublic
		if err := json.Unmarshal(raw, &page); err == nil {
			return page, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("leaderboard cache read", zap.Error(err))
	}

	page, err := c.src.Leaderboard(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(page); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("leaderboard cache write", zap.Error(err))
		}
	}
	return page, nil
}

// Invalidate bumps the cache version so every cached page is bypassed.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, versionKey).Err()
}

func (c *Cache) pageKey(ctx context.Context, offset, limit int) (string, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("leaderboard:v%d:%d:%d", v, offset, limit), nil
}
