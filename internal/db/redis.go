package db

import (
	"context"
	"strings"
	"time"

	"RestJSON/internal/logger"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects to the join cache store. addr is either host:port or
// a redis:// URL carrying credentials and a database number.
func InitRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	opts.DialTimeout = 3 * time.Second

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info("redis_connected", map[string]any{"addr": opts.Addr, "db": opts.DB})
	return rdb, nil
}
