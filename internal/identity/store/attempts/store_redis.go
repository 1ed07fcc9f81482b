package attempts

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"policardmed/pkg/platform/sentinel"
)

const failureKeyPrefix = "policardmed:login:failures:"

// Redis keeps one sorted set per key scored by failure time so every instance
// sees the same window. Sets expire once the window has passed.
type Redis struct {
	client *redis.Client
	now    Clock
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Failures(ctx context.Context, key string, window time.Duration) (int, error) {
	cutoff := s.now().Add(-window).UnixNano()
	n, err := s.client.ZCount(ctx, failureKeyPrefix+key, "("+strconv.FormatInt(cutoff, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("count login failures: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(n), nil
}

func (s *Redis) RecordFailure(ctx context.Context, key string, window time.Duration) (int, error) {
	now := s.now()
	redisKey := failureKeyPrefix + key
	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record login failure: %w: %w", sentinel.ErrUnavailable, err)
	}
	return int(card.Val()), nil
}

func (s *Redis) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failureKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear login failures: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}
