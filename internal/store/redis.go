package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/token-service/internal/domain"
	"github.com/spec-kit/token-service/pkg/util"
)

const redisKeyPrefix = "token:"

// RedisStore persists token records as JSON values with the backend's
// native TTL applied when the record expires.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put writes the record with SETNX semantics so the first writer wins.
func (s *RedisStore) Put(ctx context.Context, tok string, record *domain.TokenRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return util.NewStoreRejected(err)
	}

	var ttl time.Duration
	if record.ExpiresAt != nil {
		ttl = time.Until(*record.ExpiresAt)
		if ttl <= 0 {
			return util.NewStoreRejected(errors.New("record already expired"))
		}
	}

	set, err := s.client.SetNX(ctx, redisKeyPrefix+tok, payload, ttl).Result()
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	if set {
		return nil
	}

	existing, err := s.Get(ctx, tok)
	if err != nil {
		return util.NewStoreUnavailable(err)
	}
	return resolveExisting(tok, existing, record)
}

// Get reads and decodes the record.
func (s *RedisStore) Get(ctx context.Context, tok string) (*domain.TokenRecord, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+tok).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, util.NewNotFound("token", nil)
	}
	if err != nil {
		return nil, util.NewStoreUnavailable(err)
	}

	var record domain.TokenRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, util.NewStoreRejected(err)
	}
	return &record, nil
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return util.NewStoreUnavailable(err)
	}
	return nil
}
