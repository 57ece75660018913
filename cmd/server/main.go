package main

import (
	"context"

	"github.com/oggyb/moviematch/internal/app"
	"github.com/oggyb/moviematch/internal/cache"
	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/logger"
	"github.com/oggyb/moviematch/internal/seed"
	"github.com/oggyb/moviematch/internal/server"
	"github.com/oggyb/moviematch/internal/service/reconcile"
)

func main() {
	cfg := config.New()
	ctx := context.Background()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	// Init ledger store
	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Error("failed to init store", "backend", cfg.Store.Backend, "err", err)
		return
	}
	defer func() { _ = closeStore(ctx) }()

	// Init Redis; only the redis candidate source cannot run without it
	var redisCache *cache.RedisCache
	rc := cache.NewRedisCache(cfg)
	if err := rc.Ping(ctx); err != nil {
		if cfg.Store.CandidateSource == app.SourceRedis {
			log.Error("failed to connect to redis", "err", err)
			return
		}
		log.Warn("redis unavailable, running without liker index and count cache", "err", err)
		_ = rc.Close()
	} else {
		redisCache = rc
		defer func() { _ = rc.Close() }()
	}

	appCtx, err := app.New(cfg, store, redisCache, log)
	if err != nil {
		log.Error("failed to wire app", "err", err)
		return
	}

	if cfg.App.ENV == "development" {
		if sum, err := seed.Run(ctx, appCtx, seed.Options{Users: cfg.App.SeedUsers}); err != nil {
			log.Error("failed to seed", "err", err)
		} else {
			log.Info("seeded development data", "users", len(sum.UserIDs))
		}
	}

	registrars := []server.Registrar{
		reconcile.NewRegistrar(appCtx),
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr, "store", cfg.Store.Backend, "candidates", cfg.Store.CandidateSource)

	if err := server.StartGRPCServer(cfg, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
}
