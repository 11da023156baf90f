package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urugendo/bustickets/config"
	"github.com/urugendo/bustickets/internal/domain"
)

type RedisCache struct {
	client   *redis.Client
	tripsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, tripsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		tripsTTL: tripsTTL,
	}
}

func (c *RedisCache) GetTrips(ctx context.Context) ([]domain.Trip, error) {
	data, err := c.client.Get(ctx, tripsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var trips []domain.Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *RedisCache) SetTrips(ctx context.Context, trips []domain.Trip) error {
	payload, err := json.Marshal(trips)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tripsKey(), payload, c.tripsTTL).Err()
}

// AcquireSeatHold takes a short-lived exclusive hold on a seat while the
// booking transaction and payment initiation run. The TTL bounds how long an
// abandoned selection can block a seat.
func (c *RedisCache) AcquireSeatHold(ctx context.Context, tripID int64, seat int, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, seatHoldKey(tripID, seat), "held", ttl).Result()
}

func (c *RedisCache) ReleaseSeatHold(ctx context.Context, tripID int64, seat int) error {
	return c.client.Del(ctx, seatHoldKey(tripID, seat)).Err()
}

func tripsKey() string {
	return "cache:trips"
}

func seatHoldKey(tripID int64, seat int) string {
	return fmt.Sprintf("hold:trip:%d:seat:%d", tripID, seat)
}
