package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisv9.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, handle Handle, result Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal task result failed: %w", err)
	}
	if err := s.client.Set(ctx, s.key(handle), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set task failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, handle Handle) (Result, bool, error) {
	raw, err := s.client.Get(ctx, s.key(handle)).Result()
	if errors.Is(err, redisv9.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("redis get task failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, false, fmt.Errorf("unmarshal task result failed: %w", err)
	}
	return result, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, handle Handle) error {
	if err := s.client.Del(ctx, s.key(handle)).Err(); err != nil {
		return fmt.Errorf("redis delete task failed: %w", err)
	}
	return nil
}

func (s *RedisStore) key(handle Handle) string {
	return "task:" + string(handle)
}
