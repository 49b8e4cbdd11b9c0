package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/apptbook/libs/config"
	"github.com/md-rashed-zaman/apptbook/libs/db"
	"github.com/md-rashed-zaman/apptbook/libs/runtime"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/migrations"
	"github.com/redis/go-redis/v9"
)

// backend is the opened storage plus whatever connections it owns.
type backend struct {
	name   string
	store  storage.Store
	pool   *db.Pool
	outbox *outbox.Repository
	checks []runtime.ReadyCheck
	close  func()
}

func openBackend(ctx context.Context, name string, rdb *redis.Client, logger *slog.Logger) (*backend, error) {
	switch name {
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			return nil, err
		}
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{
			MaxConns:        int32(config.Int("DB_MAX_CONNS", 10)),
			MinConns:        int32(config.Int("DB_MIN_CONNS", 1)),
			MaxConnLifetime: config.Duration("DB_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime: config.Duration("DB_MAX_CONN_IDLE_TIME", 0),
		})
		if err != nil {
			return nil, fmt.Errorf("db connection failed: %w", err)
		}
		if config.Bool("DB_MIGRATE", true) {
			if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		repo := outbox.NewRepository()
		return &backend{
			name:   name,
			store:  storage.NewPostgres(pool, repo),
			pool:   pool,
			outbox: repo,
			checks: []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
			close:  pool.Close,
		}, nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ADDR")
		}
		store := storage.NewRedis(rdb, config.String("REDIS_KEY_PREFIX", storage.DefaultRedisPrefix))
		return &backend{
			name:   name,
			store:  store,
			checks: []runtime.ReadyCheck{{Name: "redis", Check: store.Ping}},
			close:  func() {},
		}, nil
	case "memory":
		return &backend{name: name, store: storage.NewMemory(), close: func() {}}, nil
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want postgres, redis or memory)", name)
	}
}

func openRedis(ctx context.Context) (*redis.Client, error) {
	addr := config.String("REDIS_ADDR", "")
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       config.Int("REDIS_DB", 0),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}
