package config

// Redis backs distributed rate limiting and HTTP response caching.  Both
// degrade to pass-through when the server cannot be reached at startup.

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig is read from:
//
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand (host/port win when both are set)
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//	REDIS_ENABLED – set to false to skip Redis entirely
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func LoadRedisConfig() RedisConfig {
	addr := envStr("REDIS_ADDR", "localhost:6379")
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	tlsEnv := os.Getenv("REDIS_TLS")
	return RedisConfig{
		Enabled:  envBool("REDIS_ENABLED", true),
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
		TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
	}
}

// NewRedisClient connects and pings with a short timeout.  It returns nil
// when Redis is disabled or unreachable; callers degrade gracefully.
func NewRedisClient(ctx context.Context, cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
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
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
