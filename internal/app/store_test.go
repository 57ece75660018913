package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/moviematch/internal/app"
	"github.com/oggyb/moviematch/internal/config"
)

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.New()
	cfg.Store.Backend = "sql"
	cfg.DB.Driver = "sqlite"
	cfg.DB.SQLitePath = filepath.Join(t.TempDir(), "ledger.db")

	store, closeStore, err := app.OpenStore(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeStore(ctx) })

	require.NoError(t, store.CreateUser(ctx, "a", "A"))
	u, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "A", u.DisplayName)

	_, ok := store.(app.Resetter)
	assert.True(t, ok)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	cfg := config.New()
	cfg.Store.Backend = "etcd"
	_, _, err := app.OpenStore(context.Background(), cfg)
	assert.Error(t, err)
}
