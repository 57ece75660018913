package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/moviematch/internal/app"
	"github.com/oggyb/moviematch/internal/config"
	"github.com/oggyb/moviematch/internal/logger"
	"github.com/oggyb/moviematch/internal/repository"
	"github.com/oggyb/moviematch/internal/seed"
)

func newApp(t *testing.T) *app.AppContext {
	t.Helper()
	cfg := config.New()
	cfg.Store.CandidateSource = app.SourceStore
	appCtx, err := app.New(cfg, repository.NewMemoryLedgerRepository(), nil, logger.Discard())
	require.NoError(t, err)
	return appCtx
}

func TestRunSeedsUsersAndCrashedMatches(t *testing.T) {
	ctx := context.Background()
	appCtx := newApp(t)

	sum, err := seed.Run(ctx, appCtx, seed.Options{Users: 6, Seed: 42})
	require.NoError(t, err)

	require.Len(t, sum.UserIDs, 6)
	assert.Equal(t, 5, sum.Unmatched) // 15 pairs, every 3rd

	users, err := appCtx.Ledger.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 6)
	for _, u := range users {
		assert.NotEmpty(t, u.DisplayName)
	}

	// the crashed-detector pairs have no match until someone reads
	unmatched := 0
	for i := range users {
		for j := range users {
			a, b := &users[i], &users[j]
			if a.ID < b.ID && a.Likes(b.ID) && b.Likes(a.ID) {
				if _, ok := a.MatchWith(b.ID); !ok {
					unmatched++
				}
			}
		}
	}
	assert.GreaterOrEqual(t, unmatched, 5)

	// one read per user promotes all of them
	for _, id := range sum.UserIDs {
		_, err := appCtx.Projector.Get(ctx, id)
		require.NoError(t, err)
	}
	users, err = appCtx.Ledger.GetAllUsers(ctx)
	require.NoError(t, err)
	for i := range users {
		for j := range users {
			a, b := &users[i], &users[j]
			if a.ID != b.ID && a.Likes(b.ID) && b.Likes(a.ID) {
				_, ok := a.MatchWith(b.ID)
				assert.True(t, ok, "%s and %s like each other but are not matched", a.ID, b.ID)
			}
		}
	}
}

func TestRunNeedsTwoUsers(t *testing.T) {
	_, err := seed.Run(context.Background(), newApp(t), seed.Options{Users: 1})
	assert.Error(t, err)
}

func TestRunIsReproducibleForSameSeed(t *testing.T) {
	ctx := context.Background()
	first, err := seed.Run(ctx, newApp(t), seed.Options{Users: 4, Seed: 7})
	require.NoError(t, err)
	second, err := seed.Run(ctx, newApp(t), seed.Options{Users: 4, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, first.UserIDs, second.UserIDs)
	assert.Equal(t, first.Likes, second.Likes)
	assert.Equal(t, first.Matches, second.Matches)

	other, err := seed.Run(ctx, newApp(t), seed.Options{Users: 4, Seed: 8})
	require.NoError(t, err)
	assert.NotEqual(t, first.UserIDs, other.UserIDs)
}
