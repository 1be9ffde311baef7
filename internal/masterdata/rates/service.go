package rates

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "rates:official"

// Service exposes official exchange rates with a Redis cache refreshed by a
// background job. Cache failures degrade to a direct database read.
type Service struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewService constructs a rates service. cache may be nil, which disables
// caching.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// Current returns the latest official rate per currency.
func (s *Service) Current(ctx context.Context) ([]OfficialRate, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached []OfficialRate
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("official rate cache read", slog.Any("error", err))
		}
	}
	return s.Refresh(ctx)
}

// Refresh reloads the official rates from the database and rewrites the
// cache.
func (s *Service) Refresh(ctx context.Context) ([]OfficialRate, error) {
	current, err := s.repo.CurrentRates(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if raw, err := json.Marshal(current); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil && s.logger != nil {
				s.logger.Warn("official rate cache write", slog.Any("error", err))
			}
		}
	}
	return current, nil
}
