package limits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Service exposes discount limits with a Redis read-through cache. Limits are
// fetched once per salesperson selection; a cache miss or a cache failure
// falls back to the database.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService constructs a limits service. cache may be nil, which disables
// caching.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

func cacheKey(salespersonID int64) string {
	return fmt.Sprintf("limits:salesperson:%d", salespersonID)
}

// ForSalesperson returns the discount limits of one salesperson.
func (s *Service) ForSalesperson(ctx context.Context, salespersonID int64) ([]DiscountLimit, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(salespersonID)).Bytes()
		if err == nil {
			var cached []DiscountLimit
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("discount limit cache read", slog.Any("error", err))
		}
	}

	lims, err := s.repo.ListBySalesperson(ctx, salespersonID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(lims); err == nil {
			if err := s.cache.Set(ctx, cacheKey(salespersonID), raw, s.ttl).Err(); err != nil && s.logger != nil {
				s.logger.Warn("discount limit cache write", slog.Any("error", err))
			}
		}
	}
	return lims, nil
}

// Invalidate drops the cached limits of one salesperson.
func (s *Service) Invalidate(ctx context.Context, salespersonID int64) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, cacheKey(salespersonID)).Err()
}
