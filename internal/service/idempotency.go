package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyService claims client-supplied idempotency keys so that a
// retried generation request cannot deduct a second credit. Keys are held
// for 24 hours.
type IdempotencyService struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewIdempotencyService creates a new IdempotencyService instance
func NewIdempotencyService(redisClient *redis.Client) *IdempotencyService {
	return &IdempotencyService{
		redis: redisClient,
		ttl:   24 * time.Hour,
	}
}

// Claim records the key if unseen. It returns false when the key was
// already claimed by an earlier request.
func (s *IdempotencyService) Claim(ctx context.Context, key string) (bool, error) {
	if s.redis == nil {
		return true, nil
	}
	claimed, err := s.redis.SetNX(ctx, "generate:idem:"+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return claimed, nil
}

// Release frees a claimed key. The key only needs to stay held while a
// deduction it guards actually happened; a request that failed before any
// spend must leave the key usable for a retry.
func (s *IdempotencyService) Release(ctx context.Context, key string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, "generate:idem:"+key).Err(); err != nil {
		log.Printf("[IdempotencyService] failed to release key: %v", err)
	}
}
