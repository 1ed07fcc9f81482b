package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"policardmed/pkg/platform/sentinel"
)

// revokedTokenKeyPrefix namespaces revoked JTIs.
const revokedTokenKeyPrefix = "policardmed:trl:jti:"

// RedisTRL shares revocations across instances. Keys expire with the token.
type RedisTRL struct {
	client    *redis.Client
	checkTime prometheus.Observer
}

type RedisOption func(*RedisTRL)

// WithCheckDuration observes the latency of IsRevoked in milliseconds.
func WithCheckDuration(o prometheus.Observer) RedisOption {
	return func(t *RedisTRL) {
		t.checkTime = o
	}
}

func NewRedisTRL(client *redis.Client, opts ...RedisOption) *RedisTRL {
	trl := &RedisTRL{client: client}
	for _, opt := range opts {
		opt(trl)
	}
	return trl
}

// RevokeToken stores the JTI with SET EX so it disappears when the token
// would have expired anyway.
func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if err := t.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if t.checkTime != nil {
		start := time.Now()
		defer func() {
			t.checkTime.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		}()
	}
	if jti == "" {
		return false, nil
	}
	err := t.client.Get(ctx, revokedTokenKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w: %w", sentinel.ErrUnavailable, err)
	}
	return true, nil
}
