package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/table-settlement/internal/utils"
)

// RedisRegistry stores each session's tokens in a Redis set so that every
// instance behind the load balancer sees the same capabilities.
type RedisRegistry struct {
	rdb    *redis.Client
	prefix string
	// ttl bounds how long an abandoned set lingers; it is refreshed on issue.
	ttl time.Duration
}

// NewRedisRegistry returns a registry using keys "<prefix>:<sessionID>".
func NewRedisRegistry(rdb *redis.Client, prefix string, ttl time.Duration) *RedisRegistry {
	if prefix == "" {
		prefix = "session_tokens"
	}
	return &RedisRegistry{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisRegistry) key(sessionID string) string { return r.prefix + ":" + sessionID }

func (r *RedisRegistry) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := utils.RandomToken(tokenBytes)
	if err != nil {
		return "", err
	}
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, r.key(sessionID), token)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.key(sessionID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return token, nil
}

func (r *RedisRegistry) Validate(ctx context.Context, sessionID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	return r.rdb.SIsMember(ctx, r.key(sessionID), token).Result()
}

func (r *RedisRegistry) RevokeAll(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.key(sessionID)).Err()
}
