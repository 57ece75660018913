package projection

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
)

// CandidateSource returns every user record that may stand in a like or
// match relationship with viewer. It may return more; it must not return fewer.
type CandidateSource interface {
	Candidates(ctx context.Context, viewer *ledger.UserRecord) ([]ledger.UserRecord, error)
}

// ScanSource returns all users. Correct without any index, but a full
// collection scan per read: acceptable only for a small population.
type ScanSource struct {
	Ledger *ledger.Accessor
}

func (s ScanSource) Candidates(ctx context.Context, _ *ledger.UserRecord) ([]ledger.UserRecord, error) {
	return s.Ledger.GetAllUsers(ctx)
}

// readiness is implemented by indexes that can report they are incomplete.
type readiness interface {
	Ready(ctx context.Context) (bool, error)
}

// rebuilder is implemented by indexes that can be rebuilt from a full scan.
type rebuilder interface {
	Rebuild(ctx context.Context, users []ledger.UserRecord) error
}

// IndexSource looks up "who liked viewer" in a secondary index and loads
// those users plus everyone viewer liked or matched.
//
// If the index reports itself not ready, or fails, the source falls back to
// a full scan and, when the index supports it, rebuilds the index from
// that scan.
type IndexSource struct {
	Ledger *ledger.Accessor
	Index  ledger.LikerLookup
	Log    *slog.Logger
}

func (s IndexSource) Candidates(ctx context.Context, viewer *ledger.UserRecord) ([]ledger.UserRecord, error) {
	likers, err := s.likers(ctx, viewer.ID)
	if err != nil {
		s.Log.Warn("liker index unusable, scanning all users", "viewer", viewer.ID, "err", err)
		return s.scanAndRebuild(ctx)
	}

	ids := make(map[string]struct{}, len(likers)+len(viewer.LikedUsers)+len(viewer.Matches))
	for _, id := range likers {
		ids[id] = struct{}{}
	}
	for _, l := range viewer.LikedUsers {
		ids[l.UserID] = struct{}{}
	}
	for _, m := range viewer.Matches {
		ids[m.MatchedUserID] = struct{}{}
	}
	delete(ids, viewer.ID)

	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	out := make([]ledger.UserRecord, 0, len(sorted))
	for _, id := range sorted {
		u, err := s.Ledger.GetUser(ctx, id)
		if errors.Is(err, svcErr.ErrNotFound) {
			continue // deleted user, stale index entry
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s IndexSource) likers(ctx context.Context, userID string) ([]string, error) {
	if r, ok := s.Index.(readiness); ok {
		ready, err := r.Ready(ctx)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, errors.New("index not ready")
		}
	}
	return s.Index.Likers(ctx, userID)
}

func (s IndexSource) scanAndRebuild(ctx context.Context) ([]ledger.UserRecord, error) {
	users, err := s.Ledger.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	if rb, ok := s.Index.(rebuilder); ok {
		if err := rb.Rebuild(ctx, users); err != nil {
			s.Log.Warn("liker index rebuild failed", "err", err)
		} else {
			s.Log.Info("liker index rebuilt", "users", len(users))
		}
	}
	return users, nil
}
