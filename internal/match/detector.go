package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oggyb/moviematch/internal/clock"
	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
)

// Result is the outcome of a like. Match is set only when Matched is true
// and is expressed from the liking user's side.
type Result struct {
	Matched bool
	Match   *ledger.Match
}

// Detector turns "viewer liked target" into a ledger write and, when the
// like is mutual, a match recorded on both users' documents.
//
// There is no cross-document transaction. The two AddMatch writes are
// independent, AddMatch skips existing pairs, and any asymmetry left by a
// failure between them is repaired by the projector on the next read.
type Detector struct {
	ledger *ledger.Accessor
	clock  clock.Clock
	log    *slog.Logger
}

func NewDetector(acc *ledger.Accessor, log *slog.Logger) *Detector {
	return &Detector{ledger: acc, clock: acc.Clock(), log: log}
}

// Like records viewer's like of target and creates the match if target
// already likes viewer.
//
// Errors:
//   - ErrSelfAction if viewer == target.
//   - ErrNotFound if either user does not exist.
//   - ErrStoreUnavailable if the like, or the first match write, did not complete.
//   - ErrPartialMatch if only viewer's side of the match was written.
//
// Every step is idempotent, so retrying after any error is safe.
func (d *Detector) Like(ctx context.Context, viewerID, targetID, likedContext string) (Result, error) {
	if viewerID == targetID {
		return Result{}, svcErr.ErrSelfAction
	}
	if _, err := d.ledger.GetUser(ctx, targetID); err != nil {
		return Result{}, err
	}

	if err := d.ledger.AddLike(ctx, viewerID, targetID, likedContext); err != nil {
		return Result{}, err
	}
	if err := d.ledger.AddSwipe(ctx, viewerID, targetID); err != nil {
		return Result{}, err
	}

	// Both records are read after our like is durable: of two users liking
	// each other at the same time, at least one of them sees the other's like.
	viewer, err := d.ledger.GetUser(ctx, viewerID)
	if err != nil {
		return Result{}, err
	}
	target, err := d.ledger.GetUser(ctx, targetID)
	if err != nil {
		return Result{}, err
	}

	if existing, ok := viewer.MatchWith(targetID); ok {
		// already matched; make sure the other side has it too
		if _, ok := target.MatchWith(viewerID); !ok {
			if _, err := d.ledger.AddMatch(ctx, targetID, viewerID, existing.MatchedAt, existing.Context); err != nil {
				return Result{}, fmt.Errorf("%w: mirror %s->%s: %w", svcErr.ErrPartialMatch, targetID, viewerID, err)
			}
			d.log.Info("mirrored existing match", "user", targetID, "matched", viewerID)
		}
		return Result{Matched: true, Match: &existing}, nil
	}

	if !target.Likes(viewerID) {
		d.log.Debug("like recorded", "viewer", viewerID, "target", targetID)
		return Result{}, nil
	}

	m := d.newMatch(viewer, target)

	if _, err := d.ledger.AddMatch(ctx, viewerID, targetID, m.MatchedAt, m.Context); err != nil {
		return Result{}, err
	}
	if _, err := d.ledger.AddMatch(ctx, targetID, viewerID, m.MatchedAt, m.Context); err != nil {
		d.log.Error("match recorded on one side only", "viewer", viewerID, "target", targetID, "err", err)
		return Result{}, fmt.Errorf("%w: %s->%s: %w", svcErr.ErrPartialMatch, targetID, viewerID, err)
	}

	d.log.Info("match recorded", "viewer", viewerID, "target", targetID, "context", m.Context)
	return Result{Matched: true, Match: &m}, nil
}

// newMatch builds viewer's match entry for target. If target already holds
// an entry for viewer (written by a racing chain) its timestamp and context
// are adopted so both sides agree.
func (d *Detector) newMatch(viewer, target *ledger.UserRecord) ledger.Match {
	if theirs, ok := target.MatchWith(viewer.ID); ok {
		return ledger.Match{MatchedUserID: target.ID, MatchedAt: theirs.MatchedAt, Context: theirs.Context}
	}
	mine, _ := viewer.LikeOf(target.ID)
	theirs, _ := target.LikeOf(viewer.ID)
	return ledger.Match{
		MatchedUserID: target.ID,
		MatchedAt:     d.clock.Now(),
		Context:       Context(mine, theirs),
	}
}

// Pass records that viewer decided against target and retracts viewer's
// like if there is one. An existing match is not removed.
func (d *Detector) Pass(ctx context.Context, viewerID, targetID string) error {
	if viewerID == targetID {
		return svcErr.ErrSelfAction
	}
	if _, err := d.ledger.GetUser(ctx, targetID); err != nil {
		return err
	}
	if err := d.ledger.AddSwipe(ctx, viewerID, targetID); err != nil {
		return err
	}
	if err := d.ledger.RemoveLike(ctx, viewerID, targetID); err != nil {
		return err
	}
	d.log.Debug("pass recorded", "viewer", viewerID, "target", targetID)
	return nil
}

// Context picks the match context from the two likes of a mutual pair: the
// like that completed the pair (the later one) wins, falling back to the
// earlier like when the later carries no context. Equal times break by
// user id so both sides pick the same label.
func Context(a, b ledger.Like) string {
	later, earlier := a, b
	if b.LikedAt.After(a.LikedAt) || (b.LikedAt.Equal(a.LikedAt) && b.UserID > a.UserID) {
		later, earlier = b, a
	}
	if later.Context != "" {
		return later.Context
	}
	return earlier.Context
}
