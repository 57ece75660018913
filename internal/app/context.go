package app

import (
	"fmt"
	"log/slog"

	"github.com/oggyb/moviematch/internal/cache"
	"github.com/oggyb/moviematch/internal/clock"
	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/ledger"
	"github.com/oggyb/moviematch/internal/match"
	"github.com/oggyb/moviematch/internal/projection"
)

// Candidate source names accepted in CANDIDATE_SOURCE.
const (
	SourceScan  = "scan"
	SourceStore = "store"
	SourceRedis = "redis"
)

// AppContext holds shared dependencies (store, ledger, detector, projector,
// Redis, logger). RedisCache may be nil when Redis is not configured.
type AppContext struct {
	Config     *config.Config
	Store      ledger.Store
	Ledger     *ledger.Accessor
	Detector   *match.Detector
	Projector  *projection.Projector
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
}

// New wires the reconciliation core on top of store.
//
// When rdb is set the Accessor keeps the Redis liker index up to date,
// whatever the candidate source, so switching CANDIDATE_SOURCE to redis
// later does not start from a cold index.
func New(cfg *config.Config, store ledger.Store, rdb *cache.RedisCache, logger *slog.Logger) (*AppContext, error) {
	return NewWithClock(cfg, store, rdb, logger, clock.Real())
}

// NewWithClock is New with an explicit clock.
func NewWithClock(cfg *config.Config, store ledger.Store, rdb *cache.RedisCache, logger *slog.Logger, clk clock.Clock) (*AppContext, error) {
	opts := []ledger.Option{
		ledger.WithClock(clk),
		ledger.WithLogger(logger),
	}
	if cfg.Store.Timeout > 0 {
		opts = append(opts, ledger.WithTimeout(cfg.Store.Timeout))
	}
	if rdb != nil {
		opts = append(opts, ledger.WithIndex(rdb))
	}
	acc := ledger.NewAccessor(store, opts...)

	source, err := candidateSource(cfg.Store.CandidateSource, acc, store, rdb, logger)
	if err != nil {
		return nil, err
	}

	return &AppContext{
		Config:     cfg,
		Store:      store,
		Ledger:     acc,
		Detector:   match.NewDetector(acc, logger.With("component", "detector")),
		Projector:  projection.NewProjector(acc, source, logger.With("component", "projector")),
		RedisCache: rdb,
		Logger:     logger,
	}, nil
}

func candidateSource(name string, acc *ledger.Accessor, store ledger.Store, rdb *cache.RedisCache, logger *slog.Logger) (projection.CandidateSource, error) {
	switch name {
	case SourceScan, "":
		return projection.ScanSource{Ledger: acc}, nil
	case SourceStore:
		lookup, ok := store.(ledger.LikerLookup)
		if !ok {
			return nil, fmt.Errorf("candidate source %q: store %T has no liker lookup", name, store)
		}
		return projection.IndexSource{Ledger: acc, Index: lookup, Log: logger}, nil
	case SourceRedis:
		if rdb == nil {
			return nil, fmt.Errorf("candidate source %q needs redis", name)
		}
		return projection.IndexSource{Ledger: acc, Index: rdb, Log: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported CANDIDATE_SOURCE %q", name)
	}
}
