package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgkafka "github.com/utafrali/orderengine/pkg/kafka"
)

const processedEventPrefix = "processed_event:"

// ProcessedEvents records consumed event ids in Redis so every instance of
// the consumer group shares one deduplication window.
type ProcessedEvents struct {
	client *redis.Client
	ttl    time.Duration
}

var _ pkgkafka.IdempotencyStore = (*ProcessedEvents)(nil)

// NewProcessedEvents creates a Redis-backed idempotency store.
func NewProcessedEvents(client *redis.Client, ttl time.Duration) *ProcessedEvents {
	return &ProcessedEvents{
		client: client,
		ttl:    ttl,
	}
}

// Contains reports whether eventID was recorded within the ttl.
func (s *ProcessedEvents) Contains(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, processedEventPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("check processed event: %w", err)
	}
	return n > 0, nil
}

// Add records eventID as processed.
func (s *ProcessedEvents) Add(ctx context.Context, eventID string) error {
	if err := s.client.Set(ctx, processedEventPrefix+eventID, time.Now().UTC().Unix(), s.ttl).Err(); err != nil {
		return fmt.Errorf("record processed event: %w", err)
	}
	return nil
}
