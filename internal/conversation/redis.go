package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
	"voxchat/internal/ports"
)

// redisCommands is the subset of redis.Cmdable the store uses.
type redisCommands interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the exchange log of one session in a redis list.
type RedisStore struct {
	rdb       redisCommands
	sessionID string
	ttl       time.Duration
}

func NewRedisStore(rdb redis.Cmdable, sessionID string, ttl time.Duration) *RedisStore {
	return newRedisStore(rdb, sessionID, ttl)
}

func newRedisStore(rdb redisCommands, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, sessionID: sessionID, ttl: ttl}
}

func (s *RedisStore) key() string {
	return fmt.Sprintf("voxchat:conversation:%s:exchanges", s.sessionID)
}

func (s *RedisStore) Append(ctx context.Context, exchange domain.Exchange) error {
	b, err := json.Marshal(exchange)
	if err != nil {
		return fmt.Errorf("marshal exchange: %w", err)
	}
	key := s.key()

	if err := s.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push exchange to redis")
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	// extend TTL on touch; the row is already stored, so a failed expire
	// only leaves the key without a fresh TTL
	if s.ttl > 0 {
		if ok, err := s.rdb.Expire(ctx, key, s.ttl).Result(); err != nil {
			logx.Warn().Err(err).Str("key", key).Msg("failed to set expire, keeping exchange")
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", s.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (s *RedisStore) Exchanges(ctx context.Context) ([]domain.Exchange, error) {
	key := s.key()
	rows, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Exchange{}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load exchanges from redis")
		return nil, fmt.Errorf("%w: %v", domain.ErrStore, err)
	}

	out := make([]domain.Exchange, 0, len(rows))
	for i, row := range rows {
		var ex domain.Exchange
		if err := json.Unmarshal([]byte(row), &ex); err != nil {
			logx.Error().Err(err).Str("key", key).Int("index", i).Msg("failed to unmarshal exchange")
			return nil, fmt.Errorf("unmarshal exchange at index %d: %w", i, err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *RedisStore) History(ctx context.Context, mode domain.Mode) ([]domain.Exchange, error) {
	all, err := s.Exchanges(ctx)
	if err != nil {
		return nil, err
	}
	return FilterByMode(all, mode), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	key := s.key()
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete exchanges from redis")
		return fmt.Errorf("%w: %v", domain.ErrStore, err)
	}
	return nil
}

var _ ports.ConversationStore = (*RedisStore)(nil)
