// Package idempotency tracks which webhook events have already been
// applied, so redelivered events become no-ops.
package idempotency

import (
	"context"
	"time"

	"github.com/chefmarket/backend/internal/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store interface {
	// MarkIfNew records the key and reports true exactly once per key.
	MarkIfNew(ctx context.Context, key string) (bool, error)
	// Unmark gives a key back after a failed apply, so the next delivery
	// of the same event is treated as new again.
	Unmark(ctx context.Context, key string) error
}

// RedisStore keeps processed keys in redis with a TTL; after the TTL the
// gateway no longer redelivers, so expiry is safe.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: 72 * time.Hour}
}

func (s *RedisStore) MarkIfNew(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "webhook:"+key, 1, s.ttl).Result()
}

func (s *RedisStore) Unmark(ctx context.Context, key string) error {
	return s.client.Del(ctx, "webhook:"+key).Err()
}

// GormStore is the fallback for deployments without redis: a unique index
// on the key makes the insert succeed exactly once.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) MarkIfNew(ctx context.Context, key string) (bool, error) {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ProcessedWebhookEvent{
			EventKey:    key,
			ProcessedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) Unmark(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).
		Where("event_key = ?", key).
		Delete(&models.ProcessedWebhookEvent{}).Error
}
