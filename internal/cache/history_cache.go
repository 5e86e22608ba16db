package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"demand-foresight/internal/model"
)

// HistoryCache keeps recently read chats. While a chat has pending writes its
// dirty marker is set and readers go to the store instead.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, username, chatID string) ([]model.ChatMessage, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(username, chatID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, username, chatID string, messages []model.ChatMessage) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(username, chatID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached chat and marks it dirty until the queued
// writes have had time to land.
func (c *HistoryCache) Invalidate(ctx context.Context, username, chatID string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, historyKey(username, chatID))
	pipe.Set(ctx, dirtyKey(username, chatID), "1", c.dirtyMarkerTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, username, chatID string) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey(username, chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func historyKey(username, chatID string) string {
	return fmt.Sprintf("chat:history:%s:%s", username, chatID)
}

func dirtyKey(username, chatID string) string {
	return fmt.Sprintf("chat:history:dirty:%s:%s", username, chatID)
}
