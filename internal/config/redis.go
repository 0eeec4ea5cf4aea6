package config

// Redis backs the shared session-token registry, distributed rate limiting
// and the menu cache.  If the server cannot be reached at startup the
// constructor returns nil and callers degrade to process-local behaviour.

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	TLS         bool
	TokenPrefix string        // key prefix of session token sets
	TokenTTL    time.Duration // lifetime of an untouched token set
}

// LoadRedisConfig reads:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand, used when host/port are not both set
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
//   REDIS_TOKEN_PREFIX, REDIS_TOKEN_TTL – session token storage
func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", "")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	tlsEnv := envStr("REDIS_TLS", "")
	return RedisConfig{
		Addr:        addr,
		Password:    envStr("REDIS_PASSWORD", ""),
		DB:          envInt("REDIS_DB", 0),
		TLS:         strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
		TokenPrefix: envStr("REDIS_TOKEN_PREFIX", "session_tokens"),
		TokenTTL:    envDur("REDIS_TOKEN_TTL", 96*time.Hour),
	}
}

// NewRedisClient connects and pings the server.  The returned client is nil
// if a connection cannot be established.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable; using in-process fallbacks", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
