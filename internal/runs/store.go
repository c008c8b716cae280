// Package runs persists scoring runs: the full response in Redis for
// re-rendering, one ledger row per window in Postgres, and a completion
// event on SNS.
package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"cashflow-scorecard/internal/common/errors"
	"cashflow-scorecard/internal/models"
)

const keyPrefix = "scorecard:run:"

func runKey(id string) string {
	return keyPrefix + id
}

// RedisStore keeps whole runs keyed by run id until the TTL expires.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, run models.ScoringRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return errors.NewRunStoreError(fmt.Errorf("marshal run: %w", err))
	}
	if err := s.client.Set(ctx, runKey(run.ID), data, s.ttl).Err(); err != nil {
		return errors.NewRunStoreError(err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.ScoringRun, error) {
	val, err := s.client.Get(ctx, runKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.NewRunNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewRunStoreError(err)
	}

	var run models.ScoringRun
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, errors.NewRunStoreError(fmt.Errorf("decode run %s: %w", id, err))
	}
	return &run, nil
}
