package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/creastat/chatstore/analytics"
	"github.com/creastat/chatstore/config"
	"github.com/creastat/chatstore/kv"
	"github.com/creastat/chatstore/session"
)

// app holds the components every command works with.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	backend  kv.Store
	sessions *session.KVStore
	engine   *analytics.Engine
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(ctx, cfg.Store)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	sessions := session.NewStore(backend,
		session.WithExpiry(cfg.Session.Expiry),
		session.WithMaxRetries(cfg.Session.MaxRetries),
		session.WithLogger(logger.Named("session")),
	)
	engine := analytics.NewEngine(backend,
		analytics.WithEventTTL(cfg.Analytics.EventTTL),
		analytics.WithSampleSize(cfg.Analytics.SampleSize),
		analytics.WithLogger(logger.Named("analytics")),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		backend:  backend,
		sessions: sessions,
		engine:   engine,
	}, nil
}

func newBackend(ctx context.Context, cfg config.StoreConfig) (kv.Store, error) {
	if cfg.Type == string(kv.StoreTypeMemory) {
		return kv.NewStore(kv.StoreTypeMemory)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	return kv.NewStore(kv.StoreTypeRedis, kv.WithRedisClient(client), kv.WithNamespace(cfg.Namespace))
}

func (a *app) close() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("closing store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
