package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"demand-foresight/internal/model"
)

type MessageWriter interface {
	Create(ctx context.Context, message *model.ChatMessage) error
}

type HistoryInvalidator interface {
	Invalidate(ctx context.Context, username, chatID string) error
}

// MessagePersistWorker appends queued chat messages to the store.
type MessagePersistWorker struct {
	repo   MessageWriter
	cache  HistoryInvalidator
	logger *zap.Logger
}

func NewMessagePersistWorker(repo MessageWriter, cache HistoryInvalidator, logger *zap.Logger) *MessagePersistWorker {
	return &MessagePersistWorker{repo: repo, cache: cache, logger: logger}
}

func (w *MessagePersistWorker) Handle(ctx context.Context, body []byte) error {
	var msg model.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode chat message failed: %w", err)
	}
	if err := w.repo.Create(ctx, &msg); err != nil {
		return fmt.Errorf("persist chat message failed: %w", err)
	}
	if w.cache != nil {
		if err := w.cache.Invalidate(ctx, msg.Username, msg.ChatID); err != nil {
			w.logger.Warn("invalidate history cache failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
		}
	}
	return nil
}
