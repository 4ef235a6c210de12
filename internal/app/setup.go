package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"wakesched/internal/db"
	"wakesched/internal/models/config"
)

func setupPostgres(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	sqlDB, err := db.Open(ctx, cfg.ConnectionUrl)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return sqlDB, nil
}

func setupRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}
