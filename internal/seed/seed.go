package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jaswdr/faker"

	"github.com/oggyb/moviematch/internal/app"
)

// Options controls the generated population.
type Options struct {
	Users int
	// Seed makes a run reproducible. Zero picks a random seed.
	Seed int64
}

// Summary reports what Run wrote.
type Summary struct {
	UserIDs []string
	Likes   int
	Matches int
	// Unmatched counts mutual likes written without a match, left for the
	// projector to promote on first read.
	Unmatched int
}

// Run populates the ledger with demo users and decisions.
//
// Behavior:
//  1. Creates opts.Users users with faker names and uuid ids, both drawn
//     from the seeded source.
//  2. Walks every pair once. Every 3rd pair is a mutual like written
//     straight to the ledger with no match, the state a crashed detector
//     leaves behind.
//  3. Other pairs get a one-way like, a mutual like through the detector,
//     a pass, or nothing. Like contexts are faker movie titles.
func Run(ctx context.Context, appCtx *app.AppContext, opts Options) (*Summary, error) {
	if opts.Users < 2 {
		return nil, fmt.Errorf("seed needs at least 2 users, got %d", opts.Users)
	}
	var src rand.Source
	if opts.Seed != 0 {
		src = rand.NewSource(opts.Seed)
	} else {
		src = rand.NewSource(rand.Int63())
	}
	r := rand.New(src)
	fake := faker.NewWithSeed(src)

	sum := &Summary{}
	for i := 0; i < opts.Users; i++ {
		uid, err := uuid.NewRandomFromReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to generate user id: %w", err)
		}
		id := uid.String()
		name := fake.Person().FirstName() + " " + fake.Person().LastName()
		if err := appCtx.Store.CreateUser(ctx, id, name); err != nil {
			return nil, fmt.Errorf("failed to seed user: %w", err)
		}
		sum.UserIDs = append(sum.UserIDs, id)
	}
	appCtx.Logger.Info("seeded users", "count", len(sum.UserIDs))

	pair := 0
	for i, a := range sum.UserIDs {
		for _, b := range sum.UserIDs[i+1:] {
			pair++
			if pair%3 == 0 {
				if err := appCtx.Ledger.AddLike(ctx, a, b, fake.Movie().Title()); err != nil {
					return nil, err
				}
				if err := appCtx.Ledger.AddLike(ctx, b, a, fake.Movie().Title()); err != nil {
					return nil, err
				}
				sum.Likes += 2
				sum.Unmatched++
				continue
			}

			switch r.Intn(5) {
			case 0, 1:
				viewer, target := a, b
				if r.Intn(2) == 0 {
					viewer, target = b, a
				}
				if _, err := appCtx.Detector.Like(ctx, viewer, target, fake.Movie().Title()); err != nil {
					return nil, err
				}
				sum.Likes++
			case 2:
				if _, err := appCtx.Detector.Like(ctx, a, b, fake.Movie().Title()); err != nil {
					return nil, err
				}
				res, err := appCtx.Detector.Like(ctx, b, a, fake.Movie().Title())
				if err != nil {
					return nil, err
				}
				sum.Likes += 2
				if res.Matched {
					sum.Matches++
				}
			case 3:
				if err := appCtx.Detector.Pass(ctx, a, b); err != nil {
					return nil, err
				}
			}
		}
	}

	appCtx.Logger.Info("seeded decisions",
		"likes", sum.Likes, "matches", sum.Matches, "unmatched_mutual", sum.Unmatched)
	return sum, nil
}
