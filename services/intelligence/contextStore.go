package ai

import (
	"context"
	"encoding/json"
	"time"

	"meetsync/models"

	"github.com/go-redis/redis/v8"
)

const threadContextPrefix = "ai:ctx:"

// RedisContextStore keeps per-thread conversation history so extraction can
// see earlier turns of the negotiation.
type RedisContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisContextStore(client *redis.Client, ttl time.Duration) *RedisContextStore {
	return &RedisContextStore{client: client, ttl: ttl}
}

func (s *RedisContextStore) Get(ctx context.Context, threadID string) (*models.ThreadContext, error) {
	key := threadContextPrefix + threadID
	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return &models.ThreadContext{}, nil
	}
	if err != nil {
		return nil, err
	}
	var tc models.ThreadContext
	if err := json.Unmarshal([]byte(data), &tc); err != nil {
		return nil, err
	}
	return &tc, nil
}

func (s *RedisContextStore) Set(ctx context.Context, threadID string, tc *models.ThreadContext) error {
	key := threadContextPrefix + threadID
	b, err := json.Marshal(tc)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, s.ttl).Err()
}

func (s *RedisContextStore) Clear(ctx context.Context, threadID string) error {
	return s.client.Del(ctx, threadContextPrefix+threadID).Err()
}
