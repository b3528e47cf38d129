package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/orderengine/internal/domain"
	apperrors "github.com/utafrali/orderengine/pkg/errors"
)

const rateSnapshotKey = "currency_rates:snapshot"

// rateSnapshot is the cached form of the rate table.
type rateSnapshot struct {
	Rates   []domain.CurrencyRate `json:"rates"`
	TakenAt time.Time             `json:"taken_at"`
}

// RateCache caches the currency rate table in Redis.
type RateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRateCache creates a new Redis-backed rate cache.
func NewRateCache(client *redis.Client, ttl time.Duration) *RateCache {
	return &RateCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached rates and the time they were read from the database.
// A cache miss returns an error wrapping apperrors.ErrNotFound.
func (c *RateCache) Get(ctx context.Context) ([]domain.CurrencyRate, time.Time, error) {
	data, err := c.client.Get(ctx, rateSnapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, apperrors.NotFound("rate snapshot", rateSnapshotKey)
		}
		return nil, time.Time{}, fmt.Errorf("redis get rates: %w", err)
	}

	var snap rateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal rates: %w", err)
	}
	return snap.Rates, snap.TakenAt, nil
}

// Set stores the rates with the configured TTL.
func (c *RateCache) Set(ctx context.Context, rates []domain.CurrencyRate, takenAt time.Time) error {
	data, err := json.Marshal(rateSnapshot{Rates: rates, TakenAt: takenAt})
	if err != nil {
		return fmt.Errorf("marshal rates: %w", err)
	}

	if err := c.client.Set(ctx, rateSnapshotKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set rates: %w", err)
	}
	return nil
}

// Invalidate drops the cached rates.
func (c *RateCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, rateSnapshotKey).Err(); err != nil {
		return fmt.Errorf("redis del rates: %w", err)
	}
	return nil
}
