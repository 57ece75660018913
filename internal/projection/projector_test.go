package projection_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/moviematch/internal/cache"
	"github.com/oggyb/moviematch/internal/clock"
	"github.com/oggyb/moviematch/internal/config"
	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
	"github.com/oggyb/moviematch/internal/logger"
	"github.com/oggyb/moviematch/internal/match"
	"github.com/oggyb/moviematch/internal/projection"
	"github.com/oggyb/moviematch/internal/repository"
)

var start = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

type fixture struct {
	store     *repository.MemoryLedgerRepository
	ledger    *ledger.Accessor
	detector  *match.Detector
	projector *projection.Projector
	redis     *cache.RedisCache
	mr        *miniredis.Miniredis
}

// sources builds a fixture per candidate strategy.
var sources = map[string]func(t *testing.T) fixture{
	"scan": func(t *testing.T) fixture {
		store := repository.NewMemoryLedgerRepository()
		acc := newAccessor(store)
		return build(store, acc, nil)
	},
	"store": func(t *testing.T) fixture {
		store := repository.NewMemoryLedgerRepository()
		acc := newAccessor(store)
		return build(store, acc, projection.IndexSource{Ledger: acc, Index: store, Log: logger.Discard()})
	},
	"redis": func(t *testing.T) fixture {
		rc, mr := redisCache(t)
		store := repository.NewMemoryLedgerRepository()
		acc := newAccessor(store, ledger.WithIndex(rc))
		f := build(store, acc, projection.IndexSource{Ledger: acc, Index: rc, Log: logger.Discard()})
		f.redis, f.mr = rc, mr
		return f
	},
}

func newAccessor(store ledger.Store, opts ...ledger.Option) *ledger.Accessor {
	opts = append(opts, ledger.WithClock(clock.NewFake(start)), ledger.WithLogger(logger.Discard()))
	return ledger.NewAccessor(store, opts...)
}

func build(store *repository.MemoryLedgerRepository, acc *ledger.Accessor, src projection.CandidateSource) fixture {
	return fixture{
		store:     store,
		ledger:    acc,
		detector:  match.NewDetector(acc, logger.Discard()),
		projector: projection.NewProjector(acc, src, logger.Discard()),
	}
}

func redisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	rc := cache.NewRedisCache(cfg)
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func (f fixture) users(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.store.CreateUser(context.Background(), id, id))
	}
}

func (f fixture) get(t *testing.T, id string) *projection.Projection {
	t.Helper()
	p, err := f.projector.Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func ids(entries []projection.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func forEachSource(t *testing.T, fn func(t *testing.T, f fixture)) {
	for name, mk := range sources {
		t.Run(name, func(t *testing.T) {
			fn(t, mk(t))
		})
	}
}

func TestLikeThenReciprocate(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b")

		_, err := f.detector.Like(ctx, "a", "b", "Inception")
		require.NoError(t, err)

		pa, pb := f.get(t, "a"), f.get(t, "b")
		assert.Equal(t, []string{"b"}, ids(pa.LikedByMe))
		assert.Equal(t, "Inception", pa.LikedByMe[0].Context)
		assert.Empty(t, pa.LikedMe)
		assert.Empty(t, pa.Matched)
		assert.Equal(t, []string{"a"}, ids(pb.LikedMe))
		assert.Empty(t, pb.LikedByMe)

		res, err := f.detector.Like(ctx, "b", "a", "Inception")
		require.NoError(t, err)
		require.True(t, res.Matched)

		pa, pb = f.get(t, "a"), f.get(t, "b")
		assert.Equal(t, []string{"b"}, ids(pa.Matched))
		assert.Equal(t, []string{"a"}, ids(pb.Matched))
		assert.Empty(t, pa.LikedByMe)
		assert.Empty(t, pa.LikedMe)
		assert.Empty(t, pb.LikedByMe)
		assert.Empty(t, pb.LikedMe)
		assert.Equal(t, "Inception", pa.Matched[0].Context)
		assert.Equal(t, pa.Matched[0].At, pb.Matched[0].At)
	})
}

func TestLikeThenPass(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b")

		_, err := f.detector.Like(ctx, "a", "b", "Heat")
		require.NoError(t, err)
		require.NoError(t, f.detector.Pass(ctx, "a", "b"))

		pa, pb := f.get(t, "a"), f.get(t, "b")
		assert.Empty(t, pa.LikedByMe)
		assert.Empty(t, pb.LikedMe)
		assert.Empty(t, pa.Matched)
		assert.Empty(t, pb.Matched)
	})
}

func TestProjectionIsIdempotent(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b", "c")

		_, err := f.detector.Like(ctx, "a", "b", "")
		require.NoError(t, err)
		_, err = f.detector.Like(ctx, "c", "a", "")
		require.NoError(t, err)

		first := f.get(t, "a")
		second := f.get(t, "a")
		assert.Equal(t, first, second)
	})
}

func TestNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := sources["scan"](t)
	f.users(t, "a", "b", "c", "d")

	for _, id := range []string{"c", "b", "d"} {
		_, err := f.detector.Like(ctx, id, "a", "")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"d", "b", "c"}, ids(f.get(t, "a").LikedMe))
}

func TestMutualLikesWithoutMatchArePromoted(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b")

		// likes written without the detector, as after a crash between steps
		require.NoError(t, f.ledger.AddLike(ctx, "a", "b", "Heat"))
		require.NoError(t, f.ledger.AddLike(ctx, "b", "a", "Ronin"))

		pa := f.get(t, "a")
		require.Equal(t, []string{"b"}, ids(pa.Matched))
		assert.Equal(t, "Ronin", pa.Matched[0].Context)
		assert.Empty(t, pa.LikedByMe)
		assert.Empty(t, pa.LikedMe)

		a, err := f.ledger.GetUser(ctx, "a")
		require.NoError(t, err)
		b, err := f.ledger.GetUser(ctx, "b")
		require.NoError(t, err)
		ma, ok := a.MatchWith("b")
		require.True(t, ok)
		mb, ok := b.MatchWith("a")
		require.True(t, ok)
		assert.Equal(t, ma.MatchedAt, mb.MatchedAt)
		assert.Equal(t, ma.Context, mb.Context)

		pb := f.get(t, "b")
		assert.Equal(t, []string{"a"}, ids(pb.Matched))
		assert.Equal(t, ma.MatchedAt, pb.Matched[0].At)
	})
}

func TestOneSidedMatchIsMirrored(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b")

		at := start.Add(-time.Hour)
		require.NoError(t, f.ledger.AddLike(ctx, "a", "b", "Alien"))
		_, err := f.ledger.AddMatch(ctx, "a", "b", at, "Alien")
		require.NoError(t, err)

		// viewed from the side that is missing the entry
		pb := f.get(t, "b")
		require.Equal(t, []string{"a"}, ids(pb.Matched))
		assert.Equal(t, at, pb.Matched[0].At)

		b, err := f.ledger.GetUser(ctx, "b")
		require.NoError(t, err)
		mb, ok := b.MatchWith("a")
		require.True(t, ok)
		assert.Equal(t, at, mb.MatchedAt)
		assert.Equal(t, "Alien", mb.Context)
	})
}

func TestPartialMatchHealsOnNextRead(t *testing.T) {
	ctx := context.Background()
	f := sources["scan"](t)
	f.users(t, "a", "b")

	_, err := f.detector.Like(ctx, "b", "a", "")
	require.NoError(t, err)

	f.store.SetFault(func(op repository.Op, userID string, list ledger.ListName) error {
		if op == repository.OpAppend && list == ledger.ListMatches && userID == "b" {
			return errors.New("timeout")
		}
		return nil
	})
	_, err = f.detector.Like(ctx, "a", "b", "")
	require.ErrorIs(t, err, svcErr.ErrPartialMatch)

	// repair still failing: reported as matched, no error
	pb := f.get(t, "b")
	assert.Equal(t, []string{"a"}, ids(pb.Matched))
	assert.Empty(t, pb.LikedByMe)

	f.store.SetFault(nil)
	pb = f.get(t, "b")
	assert.Equal(t, []string{"a"}, ids(pb.Matched))

	a, err := f.ledger.GetUser(ctx, "a")
	require.NoError(t, err)
	b, err := f.ledger.GetUser(ctx, "b")
	require.NoError(t, err)
	ma, _ := a.MatchWith("b")
	mb, ok := b.MatchWith("a")
	require.True(t, ok)
	assert.Equal(t, ma.MatchedAt, mb.MatchedAt)
}

func TestViewerReadFailure(t *testing.T) {
	ctx := context.Background()
	f := sources["scan"](t)
	f.users(t, "a")

	_, err := f.projector.Get(ctx, "ghost")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	f.store.SetFault(func(op repository.Op, userID string, _ ledger.ListName) error {
		if op == repository.OpGet && userID == "a" {
			return errors.New("down")
		}
		return nil
	})
	_, err = f.projector.Get(ctx, "a")
	assert.ErrorIs(t, err, svcErr.ErrStoreUnavailable)
}

func TestPassAfterMatchKeepsMatch(t *testing.T) {
	forEachSource(t, func(t *testing.T, f fixture) {
		ctx := context.Background()
		f.users(t, "a", "b")

		_, err := f.detector.Like(ctx, "a", "b", "")
		require.NoError(t, err)
		_, err = f.detector.Like(ctx, "b", "a", "")
		require.NoError(t, err)
		require.NoError(t, f.detector.Pass(ctx, "a", "b"))

		assert.Equal(t, []string{"b"}, ids(f.get(t, "a").Matched))
		assert.Equal(t, []string{"a"}, ids(f.get(t, "b").Matched))
	})
}

// TestPartitionOverRandomLedgers builds random like/match relations among a
// small population, some through the detector and some written directly,
// and checks every projection is an exact partition of the viewer's
// relationships and that matches end up symmetric.
func TestPartitionOverRandomLedgers(t *testing.T) {
	const n = 9
	for seed := int64(1); seed <= 5; seed++ {
		forEachSource(t, func(t *testing.T, f fixture) {
			ctx := context.Background()
			rnd := rand.New(rand.NewSource(seed))

			users := make([]string, n)
			for i := range users {
				users[i] = fmt.Sprintf("u%02d", i)
			}
			f.users(t, users...)

			for _, a := range users {
				for _, b := range users {
					if a == b {
						continue
					}
					switch r := rnd.Intn(10); {
					case r < 2:
						_, err := f.detector.Like(ctx, a, b, "via detector")
						require.NoError(t, err)
					case r < 4:
						require.NoError(t, f.ledger.AddLike(ctx, a, b, "direct"))
					case r < 5:
						require.NoError(t, f.detector.Pass(ctx, a, b))
					case r < 6:
						// what a partial match failure leaves behind
						require.NoError(t, f.ledger.AddLike(ctx, a, b, "direct"))
						_, err := f.ledger.AddMatch(ctx, a, b, start.Add(-time.Minute), "orphan")
						require.NoError(t, err)
					}
				}
			}

			snapshot := map[string]*ledger.UserRecord{}
			for _, id := range users {
				u, err := f.ledger.GetUser(ctx, id)
				require.NoError(t, err)
				snapshot[id] = u
			}
			related := func(v, o string) bool {
				_, m1 := snapshot[v].MatchWith(o)
				_, m2 := snapshot[o].MatchWith(v)
				return m1 || m2 || snapshot[v].Likes(o) || snapshot[o].Likes(v)
			}

			for _, v := range users {
				p := f.get(t, v)
				count := map[string]int{}
				for _, list := range [][]projection.Entry{p.LikedByMe, p.LikedMe, p.Matched} {
					for _, e := range list {
						count[e.UserID]++
					}
				}
				for _, o := range users {
					if o == v {
						assert.Zero(t, count[o], "%s sees itself", v)
						continue
					}
					if related(v, o) {
						assert.Equal(t, 1, count[o], "%s sees %s %d times", v, o, count[o])
					} else {
						assert.Zero(t, count[o], "%s sees unrelated %s", v, o)
					}
					if snapshot[v].Likes(o) && snapshot[o].Likes(v) {
						assert.Contains(t, ids(p.Matched), o, "mutual like %s/%s not matched", v, o)
					}
				}
			}

			// after one full round every match is stored on both sides
			matched := map[string][]string{}
			for _, v := range users {
				matched[v] = ids(f.get(t, v).Matched)
			}
			for _, v := range users {
				u, err := f.ledger.GetUser(ctx, v)
				require.NoError(t, err)
				for _, m := range u.Matches {
					other, err := f.ledger.GetUser(ctx, m.MatchedUserID)
					require.NoError(t, err)
					_, ok := other.MatchWith(v)
					assert.True(t, ok, "%s matched %s but not the reverse", v, m.MatchedUserID)
					assert.Contains(t, matched[m.MatchedUserID], v)
				}
			}
		})
	}
}

func TestRedisIndexRebuiltOnFirstRead(t *testing.T) {
	ctx := context.Background()
	f := sources["redis"](t)
	f.users(t, "a", "b", "c")

	_, err := f.detector.Like(ctx, "b", "a", "")
	require.NoError(t, err)

	ready, err := f.redis.Ready(ctx)
	require.NoError(t, err)
	assert.False(t, ready)

	assert.Equal(t, []string{"b"}, ids(f.get(t, "a").LikedMe))

	ready, err = f.redis.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)

	_, err = f.detector.Like(ctx, "c", "a", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, ids(f.get(t, "a").LikedMe))
}

func TestRedisIndexStaleEntriesAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := sources["redis"](t)
	f.users(t, "a", "b", "c")
	f.get(t, "a") // build

	require.NoError(t, f.redis.AddLiker(ctx, "a", "ghost"))
	require.NoError(t, f.redis.AddLiker(ctx, "a", "c"))

	p := f.get(t, "a")
	assert.Empty(t, p.LikedMe)
	assert.Empty(t, p.LikedByMe)
	assert.Empty(t, p.Matched)
}

func TestRedisDownFallsBackToScan(t *testing.T) {
	ctx := context.Background()
	f := sources["redis"](t)
	f.users(t, "a", "b")
	f.get(t, "a")

	f.mr.Close()

	_, err := f.detector.Like(ctx, "b", "a", "Up")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(f.get(t, "a").LikedMe))
}

func TestLikeDuringRedisOutageIsNotLost(t *testing.T) {
	ctx := context.Background()
	f := sources["redis"](t)
	f.users(t, "a", "b")
	assert.Empty(t, f.get(t, "b").LikedMe) // builds the index

	f.mr.Close()
	_, err := f.detector.Like(ctx, "a", "b", "Inception")
	require.NoError(t, err)
	require.NoError(t, f.mr.Restart())

	assert.Equal(t, []string{"a"}, ids(f.get(t, "b").LikedMe))

	ready, err := f.redis.Ready(ctx)
	require.NoError(t, err)
	assert.True(t, ready)
	likers, err := f.redis.Likers(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, likers)
}

func TestPromoteAdoptsRacingMatch(t *testing.T) {
	ctx := context.Background()
	f := sources["scan"](t)
	f.users(t, "a", "b")
	require.NoError(t, f.ledger.AddLike(ctx, "a", "b", "Inception"))
	require.NoError(t, f.ledger.AddLike(ctx, "b", "a", "Alien"))

	// another writer lands a's match between the read and the append
	racedAt := start.Add(-time.Hour)
	var raced atomic.Bool
	f.store.SetFault(func(op repository.Op, userID string, list ledger.ListName) error {
		if op == repository.OpAppend && list == ledger.ListMatches && userID == "a" && raced.CompareAndSwap(false, true) {
			_, err := f.store.AppendToList(ctx, "a", ledger.ListMatches, ledger.Entry{MemberID: "b", Context: "Racer", At: racedAt})
			return err
		}
		return nil
	})

	pa := f.get(t, "a")
	require.True(t, raced.Load())
	require.Len(t, pa.Matched, 1)
	assert.Equal(t, "Racer", pa.Matched[0].Context)
	assert.True(t, racedAt.Equal(pa.Matched[0].At))

	b, err := f.ledger.GetUser(ctx, "b")
	require.NoError(t, err)
	mb, ok := b.MatchWith("a")
	require.True(t, ok)
	assert.Equal(t, "Racer", mb.Context)
	assert.True(t, racedAt.Equal(mb.MatchedAt))
}
