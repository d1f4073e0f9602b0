package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/rtzll/insight/internal/errx"
	"github.com/rtzll/insight/pkg/logx"
)

// HistoryRepository stores the ordered messages of each conversation.
type HistoryRepository interface {
	// Append adds messages to the end of the conversation.
	Append(ctx context.Context, conversationID string, messages ...*schema.Message) error
	// Load returns the conversation in insertion order; unknown ids yield an empty slice.
	Load(ctx context.Context, conversationID string) ([]*schema.Message, error)
	// Clear drops the conversation.
	Clear(ctx context.Context, conversationID string) error
}

// MemoryHistory keeps conversations in process memory.
type MemoryHistory struct {
	mu    sync.RWMutex
	convs map[string][]*schema.Message
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{convs: make(map[string][]*schema.Message)}
}

func (h *MemoryHistory) Append(_ context.Context, conversationID string, messages ...*schema.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.convs[conversationID] = append(h.convs[conversationID], messages...)
	return nil
}

func (h *MemoryHistory) Load(_ context.Context, conversationID string) ([]*schema.Message, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.convs[conversationID]
	out := make([]*schema.Message, len(src))
	copy(out, src)
	return out, nil
}

func (h *MemoryHistory) Clear(_ context.Context, conversationID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.convs, conversationID)
	return nil
}

// RedisHistory stores each conversation as a JSON encoded Redis list.
type RedisHistory struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisHistory(rdb redis.Cmdable, ttl time.Duration) *RedisHistory {
	return &RedisHistory{rdb: rdb, ttl: ttl}
}

func (r *RedisHistory) key(conversationID string) string {
	return fmt.Sprintf("insight:conversation:%s:messages", conversationID)
}

func (r *RedisHistory) Append(ctx context.Context, conversationID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]any, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		values = append(values, b)
	}

	key := r.key(conversationID)
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append conversation messages")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisHistory) Load(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	key := r.key(conversationID)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*schema.Message{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

func (r *RedisHistory) Clear(ctx context.Context, conversationID string) error {
	key := r.key(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete conversation history")
		return errx.WrapRedis(err)
	}
	return nil
}

var (
	_ HistoryRepository = (*MemoryHistory)(nil)
	_ HistoryRepository = (*RedisHistory)(nil)
)
