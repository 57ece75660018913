package projection

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/oggyb/moviematch/internal/clock"
	"github.com/oggyb/moviematch/internal/ledger"
	"github.com/oggyb/moviematch/internal/match"
)

// Entry is one user in a projection list.
// At is the like time for LikedByMe/LikedMe and matchedAt for Matched.
type Entry struct {
	UserID  string
	Context string
	At      time.Time
}

// Projection is the three-way partition of a viewer's relationships.
// Every user related to the viewer by a like or a match appears in exactly one list.
type Projection struct {
	LikedByMe []Entry
	LikedMe   []Entry
	Matched   []Entry
}

// Projector derives projections from the ledger on every call and repairs,
// on the way, any match that should exist but does not:
//
//   - a mutual like with no match on either side (detector crashed or a like
//     was written without it) is promoted to a match on both sides;
//   - a match present on one side only (partial match failure) is mirrored
//     onto the other side with the same timestamp and context.
//
// Repair writes that fail are logged and retried on the next read; the pair
// is still reported as matched.
type Projector struct {
	ledger *ledger.Accessor
	source CandidateSource
	clock  clock.Clock
	log    *slog.Logger
}

// NewProjector creates a Projector. A nil source means a full scan.
func NewProjector(acc *ledger.Accessor, source CandidateSource, log *slog.Logger) *Projector {
	if source == nil {
		source = ScanSource{Ledger: acc}
	}
	return &Projector{ledger: acc, source: source, clock: acc.Clock(), log: log}
}

// Get returns viewer's projection. Fails only if viewer's own record or the
// candidate set cannot be read.
func (p *Projector) Get(ctx context.Context, viewerID string) (*Projection, error) {
	viewer, err := p.ledger.GetUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	candidates, err := p.source.Candidates(ctx, viewer)
	if err != nil {
		return nil, err
	}

	out := &Projection{}
	seen := make(map[string]bool, len(candidates))

	for i := range candidates {
		other := &candidates[i]
		if other.ID == viewer.ID || seen[other.ID] {
			continue
		}
		seen[other.ID] = true

		mine, iMatched := viewer.MatchWith(other.ID)
		theirs, theyMatched := other.MatchWith(viewer.ID)
		myLike, iLike := viewer.LikeOf(other.ID)
		theirLike, theyLike := other.LikeOf(viewer.ID)

		switch {
		case iMatched && theyMatched:
			out.Matched = append(out.Matched, matchEntry(mine))

		case iMatched:
			p.heal(ctx, other.ID, viewer.ID, mine.MatchedAt, mine.Context, "mirror")
			out.Matched = append(out.Matched, matchEntry(mine))

		case theyMatched:
			p.heal(ctx, viewer.ID, other.ID, theirs.MatchedAt, theirs.Context, "mirror")
			out.Matched = append(out.Matched, Entry{UserID: other.ID, Context: theirs.Context, At: theirs.MatchedAt})

		case iLike && theyLike:
			m := p.promote(ctx, viewer.ID, other.ID, match.Context(myLike, theirLike))
			out.Matched = append(out.Matched, matchEntry(m))

		case iLike:
			out.LikedByMe = append(out.LikedByMe, Entry{UserID: other.ID, Context: myLike.Context, At: myLike.LikedAt})

		case theyLike:
			out.LikedMe = append(out.LikedMe, Entry{UserID: other.ID, Context: theirLike.Context, At: theirLike.LikedAt})
		}
	}

	// Relationships with users missing from the candidate set (deleted
	// accounts) are still reported from viewer's own ledger.
	for _, m := range viewer.Matches {
		if !seen[m.MatchedUserID] {
			seen[m.MatchedUserID] = true
			out.Matched = append(out.Matched, matchEntry(m))
		}
	}
	for _, l := range viewer.LikedUsers {
		if !seen[l.UserID] {
			seen[l.UserID] = true
			out.LikedByMe = append(out.LikedByMe, Entry{UserID: l.UserID, Context: l.Context, At: l.LikedAt})
		}
	}

	newestFirst(out.LikedByMe)
	newestFirst(out.LikedMe)
	newestFirst(out.Matched)
	return out, nil
}

// promote records the match of a mutual like on both sides and returns the
// viewer's entry as stored. If a racing writer stored viewer's entry first,
// that entry is returned and mirrored instead of the locally built one.
func (p *Projector) promote(ctx context.Context, viewerID, otherID, label string) ledger.Match {
	m := ledger.Match{MatchedUserID: otherID, MatchedAt: p.clock.Now(), Context: label}

	added, err := p.heal(ctx, viewerID, otherID, m.MatchedAt, m.Context, "promote")
	if err == nil && !added {
		if u, err := p.ledger.GetUser(ctx, viewerID); err == nil {
			if stored, ok := u.MatchWith(otherID); ok {
				m = stored
			}
		}
	}
	p.heal(ctx, otherID, viewerID, m.MatchedAt, m.Context, "promote")
	return m
}

func (p *Projector) heal(ctx context.Context, userID, matchedUserID string, at time.Time, label, kind string) (bool, error) {
	added, err := p.ledger.AddMatch(ctx, userID, matchedUserID, at, label)
	if err != nil {
		p.log.Warn("match repair failed, will retry on next read",
			"kind", kind, "user", userID, "matched", matchedUserID, "err", err)
		return false, err
	}
	if added {
		p.log.Info("match repaired", "kind", kind, "user", userID, "matched", matchedUserID)
	}
	return added, nil
}

func matchEntry(m ledger.Match) Entry {
	return Entry{UserID: m.MatchedUserID, Context: m.Context, At: m.MatchedAt}
}

func newestFirst(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].At.Equal(entries[j].At) {
			return entries[i].At.After(entries[j].At)
		}
		return entries[i].UserID < entries[j].UserID
	})
}
