package app

import (
	"context"
	"fmt"

	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/db"
	"github.com/oggyb/moviematch/internal/ledger"
	"github.com/oggyb/moviematch/internal/repository"
)

// Resetter is implemented by stores that can wipe all ledger data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// OpenStore connects the ledger backend selected by STORE_BACKEND.
// The returned close func releases the connection.
func OpenStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(context.Context) error, error) {
	switch cfg.Store.Backend {
	case "sql", "":
		database, err := db.NewDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := database.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		return repository.NewSQLLedgerRepository(database), func(context.Context) error { return sqlDB.Close() }, nil

	case "mongo":
		client, database, err := db.NewMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoLedgerRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return repo, client.Disconnect, nil

	default:
		return nil, nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.Store.Backend)
	}
}
