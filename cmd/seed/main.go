package main

import (
	"context"
	"log"

	"github.com/oggyb/moviematch/internal/app"
	"github.com/oggyb/moviematch/internal/cache"
	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/logger"
	"github.com/oggyb/moviematch/internal/seed"
)

func main() {
	// Load configuration
	cfg := config.New()
	ctx := context.Background()
	logger.InitFromConfig(cfg)

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer func() { _ = closeStore(ctx) }()

	// Fresh start
	if r, ok := store.(app.Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			log.Fatalf("failed to reset store: %v", err)
		}
	}

	var redisCache *cache.RedisCache
	rc := cache.NewRedisCache(cfg)
	if err := rc.Ping(ctx); err != nil {
		log.Printf("redis unavailable, skipping index: %v", err)
		cfg.Store.CandidateSource = app.SourceScan
	} else {
		redisCache = rc
		defer func() { _ = rc.Close() }()
		if err := rc.Reset(ctx); err != nil {
			log.Fatalf("failed to reset redis: %v", err)
		}
	}

	appCtx, err := app.New(cfg, store, redisCache, logger.L())
	if err != nil {
		log.Fatalf("failed to wire app: %v", err)
	}

	sum, err := seed.Run(ctx, appCtx, seed.Options{Users: cfg.App.SeedUsers})
	if err != nil {
		log.Fatalf("failed to seed: %v", err)
	}

	if redisCache != nil {
		users, err := appCtx.Ledger.GetAllUsers(ctx)
		if err != nil {
			log.Fatalf("failed to load users: %v", err)
		}
		if err := redisCache.Rebuild(ctx, users); err != nil {
			log.Fatalf("failed to rebuild liker index: %v", err)
		}
	}

	log.Printf("Seeding completed: %d users, %d likes, %d matches, %d unmatched mutual likes.",
		len(sum.UserIDs), sum.Likes, sum.Matches, sum.Unmatched)
}
