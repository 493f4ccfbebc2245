package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	"github.com/voicebot-core/server/internal/agent/model"
	errx "github.com/voicebot-core/server/internal/core/error"
	logx "github.com/voicebot-core/server/pkg/logger"
)

// RedisSessionStore keeps sessions in Redis under three keys per call:
// a list of JSON messages, a JSON string of pending tool calls and a hash of
// caller attributes. Every write slides the TTL of all three.
type RedisSessionStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionStore(rdb redis.Cmdable, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionStore) historyKey(callID string) string {
	return fmt.Sprintf("call:%s:history", callID)
}

func (r *RedisSessionStore) pendingKey(callID string) string {
	return fmt.Sprintf("call:%s:pending", callID)
}

func (r *RedisSessionStore) attrsKey(callID string) string {
	return fmt.Sprintf("call:%s:attrs", callID)
}

// touch extends the TTL of every key of the call inside the given pipeline.
func (r *RedisSessionStore) touch(ctx context.Context, pipe redis.Pipeliner, callID string) {
	if r.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, r.historyKey(callID), r.ttl)
	pipe.Expire(ctx, r.pendingKey(callID), r.ttl)
	pipe.Expire(ctx, r.attrsKey(callID), r.ttl)
}

// Init is a no-op beyond validation: Redis keys appear on first write.
func (r *RedisSessionStore) Init(ctx context.Context, callID string) error {
	return validCallID(callID)
}

func (r *RedisSessionStore) AppendTurns(ctx context.Context, callID string, msgs ...*schema.Message) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	rows := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			logx.Error().Err(err).Str("call_sid", callID).Msg("failed to marshal message")
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, b)
	}
	key := r.historyKey(callID)

	// a single RPUSH keeps a call/result pair adjacent
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, rows...)
	r.touch(ctx, pipe, callID)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push messages to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionStore) History(ctx context.Context, callID string) ([]*schema.Message, error) {
	if err := validCallID(callID); err != nil {
		return nil, err
	}
	key := r.historyKey(callID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*schema.Message{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load call history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("call_sid", callID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return msgs, nil
}

func (r *RedisSessionStore) SetPendingToolCalls(ctx context.Context, callID string, calls []schema.ToolCall) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	key := r.pendingKey(callID)
	if len(calls) == 0 {
		if err := r.rdb.Del(ctx, key).Err(); err != nil {
			return errx.WrapRedis(err)
		}
		return nil
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("marshal pending tool calls: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, key, b, 0)
	r.touch(ctx, pipe, callID)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store pending tool calls")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionStore) TakePendingToolCalls(ctx context.Context, callID string) ([]schema.ToolCall, bool, error) {
	if err := validCallID(callID); err != nil {
		return nil, false, err
	}
	key := r.pendingKey(callID)

	raw, err := r.rdb.GetDel(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to take pending tool calls")
		return nil, false, errx.WrapRedis(err)
	}
	var calls []schema.ToolCall
	if err := json.Unmarshal([]byte(raw), &calls); err != nil {
		return nil, false, fmt.Errorf("unmarshal pending tool calls: %w", err)
	}
	if len(calls) == 0 {
		return nil, false, nil
	}
	return calls, true, nil
}

func (r *RedisSessionStore) SetCallerAttribute(ctx context.Context, callID, attr, value string) error {
	if err := validCallID(callID); err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.attrsKey(callID), attr, value)
	r.touch(ctx, pipe, callID)
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", r.attrsKey(callID)).Str("attr", attr).Msg("failed to set caller attribute")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionStore) CallerAttribute(ctx context.Context, callID, attr string) (string, bool, error) {
	if err := validCallID(callID); err != nil {
		return "", false, err
	}
	v, err := r.rdb.HGet(ctx, r.attrsKey(callID), attr).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, errx.WrapRedis(err)
	}
	return v, true, nil
}

var _ model.SessionStore = (*RedisSessionStore)(nil)
