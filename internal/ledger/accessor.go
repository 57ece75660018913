package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oggyb/moviematch/internal/clock"
	"github.com/oggyb/moviematch/internal/logger"
)

// DefaultTimeout bounds a single store round-trip.
const DefaultTimeout = 5 * time.Second

// Accessor is the only component that reads or mutates a user's
// liked_users, swiped_users and matches lists.
//
// Every mutation is a read-modify-write against one document and is
// idempotent, so callers may retry any failed call. Nothing here is atomic
// across two users' documents.
type Accessor struct {
	store   Store
	index   LikerIndex
	clock   clock.Clock
	timeout time.Duration
	log     *slog.Logger
}

type Option func(*Accessor)

// WithIndex attaches a liker index that AddLike/RemoveLike keep current.
func WithIndex(idx LikerIndex) Option {
	return func(a *Accessor) { a.index = idx }
}

func WithClock(c clock.Clock) Option {
	return func(a *Accessor) { a.clock = c }
}

// WithTimeout sets the per-call store timeout. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(a *Accessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Accessor) { a.log = l }
}

// NewAccessor creates an Accessor over the given store.
func NewAccessor(store Store, opts ...Option) *Accessor {
	a := &Accessor{
		store:   store,
		clock:   clock.Real(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.L()
	}
	return a
}

// Clock returns the time source used for ledger timestamps.
func (a *Accessor) Clock() clock.Clock { return a.clock }

func (a *Accessor) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, a.timeout)
}

// GetUser returns the full record for userID.
func (a *Accessor) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	cctx, cancel := a.call(ctx)
	defer cancel()

	u, err := a.store.Get(cctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// GetAllUsers returns every user record. This is a full scan.
func (a *Accessor) GetAllUsers(ctx context.Context) ([]UserRecord, error) {
	cctx, cancel := a.call(ctx)
	defer cancel()

	users, err := a.store.GetAll(cctx)
	if err != nil {
		return nil, fmt.Errorf("get all users: %w", err)
	}
	return users, nil
}

// AddLike ensures targetID is in userID's liked_users. An existing like is
// left as is, including its original context.
func (a *Accessor) AddLike(ctx context.Context, userID, targetID, likedContext string) error {
	u, err := a.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("add like %s->%s: %w", userID, targetID, err)
	}

	if !u.Likes(targetID) {
		if err := a.appendEntry(ctx, userID, ListLikedUsers, Entry{
			MemberID: targetID,
			Context:  likedContext,
			At:       a.clock.Now(),
		}); err != nil {
			return fmt.Errorf("add like %s->%s: %w", userID, targetID, err)
		}
	}

	// re-adding is harmless and repairs an index entry lost to an earlier failure
	if a.index != nil {
		a.indexed(ctx, "add", a.index.AddLiker, targetID, userID)
	}
	return nil
}

// RemoveLike removes targetID from userID's liked_users. No-op if absent.
func (a *Accessor) RemoveLike(ctx context.Context, userID, targetID string) error {
	u, err := a.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("remove like %s->%s: %w", userID, targetID, err)
	}

	if u.Likes(targetID) {
		cctx, cancel := a.call(ctx)
		err := a.store.RemoveFromList(cctx, userID, ListLikedUsers, targetID)
		cancel()
		if err != nil {
			return fmt.Errorf("remove like %s->%s: %w", userID, targetID, err)
		}
	}

	if a.index != nil {
		a.indexed(ctx, "remove", a.index.RemoveLiker, targetID, userID)
	}
	return nil
}

// AddSwipe records that userID has decided on targetID.
func (a *Accessor) AddSwipe(ctx context.Context, userID, targetID string) error {
	u, err := a.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("add swipe %s->%s: %w", userID, targetID, err)
	}
	if u.HasSwiped(targetID) {
		return nil
	}
	if err := a.appendEntry(ctx, userID, ListSwipedUsers, Entry{MemberID: targetID, At: a.clock.Now()}); err != nil {
		return fmt.Errorf("add swipe %s->%s: %w", userID, targetID, err)
	}
	return nil
}

// AddMatch appends a match entry for matchedUserID on userID's document,
// skipping if one already exists. Reports whether an entry was written.
func (a *Accessor) AddMatch(ctx context.Context, userID, matchedUserID string, matchedAt time.Time, matchContext string) (bool, error) {
	u, err := a.GetUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("add match %s->%s: %w", userID, matchedUserID, err)
	}
	if _, ok := u.MatchWith(matchedUserID); ok {
		return false, nil
	}

	cctx, cancel := a.call(ctx)
	defer cancel()

	added, err := a.store.AppendToList(cctx, userID, ListMatches, Entry{
		MemberID: matchedUserID,
		Context:  matchContext,
		At:       matchedAt,
	})
	if err != nil {
		return false, fmt.Errorf("add match %s->%s: %w", userID, matchedUserID, err)
	}
	return added, nil
}

func (a *Accessor) appendEntry(ctx context.Context, userID string, list ListName, e Entry) error {
	cctx, cancel := a.call(ctx)
	defer cancel()
	_, err := a.store.AppendToList(cctx, userID, list, e)
	return err
}

// indexed applies one index mutation. Failures are logged and mark the index
// stale so readers stop trusting it until it is rebuilt.
func (a *Accessor) indexed(ctx context.Context, op string, fn func(context.Context, string, string) error, targetID, likerID string) {
	cctx, cancel := a.call(ctx)
	defer cancel()

	if err := fn(cctx, targetID, likerID); err != nil {
		a.log.Warn("liker index update failed", "op", op, "target", targetID, "liker", likerID, "err", err)
		if serr := a.index.MarkStale(cctx); serr != nil {
			a.log.Warn("could not mark liker index stale", "err", serr)
		}
	}
}
