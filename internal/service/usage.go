package service

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// GeneratedRecipesKey is the global counter bumped once per persisted
// generation.
const GeneratedRecipesKey = "stats:recipes:generated"

// UsageService is a best-effort global telemetry counter. Failures are
// logged and dropped; they never affect a response already sent.
type UsageService struct {
	redis *redis.Client
}

// NewUsageService creates a new UsageService instance
func NewUsageService(redisClient *redis.Client) *UsageService {
	return &UsageService{redis: redisClient}
}

// IncrementGlobalCount bumps the named counter, fire and forget.
func (s *UsageService) IncrementGlobalCount(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(ctx, key).Err(); err != nil {
		log.Printf("[UsageService] failed to increment %s: %v", key, err)
	}
}
