package ledger

import (
	"context"
	"time"
)

// ListName identifies one of the per-user lists held on a user document.
type ListName string

const (
	ListLikedUsers  ListName = "liked_users"
	ListSwipedUsers ListName = "swiped_users"
	ListMatches     ListName = "matches"
)

// Entry is one item in a user's list. A list holds at most one entry per MemberID.
//
// For liked_users: MemberID is the liked user, Context the title being watched, At the like time.
// For swiped_users: MemberID is the decided-on user, At the swipe time.
// For matches: MemberID is the matched user, Context the match context, At matchedAt.
type Entry struct {
	MemberID string
	Context  string
	At       time.Time
}

// Like is one element of a user's liked-users ledger.
type Like struct {
	UserID  string
	Context string
	LikedAt time.Time
}

// Match is a confirmed mutual match from the owner's perspective.
type Match struct {
	MatchedUserID string
	MatchedAt     time.Time
	Context       string
}

// UserRecord is the ledger view of one user document.
type UserRecord struct {
	ID          string
	DisplayName string
	LikedUsers  []Like
	SwipedUsers []string
	Matches     []Match
}

// LikeOf returns u's like of userID, if any.
func (u *UserRecord) LikeOf(userID string) (Like, bool) {
	for _, l := range u.LikedUsers {
		if l.UserID == userID {
			return l, true
		}
	}
	return Like{}, false
}

// Likes reports whether u has liked userID.
func (u *UserRecord) Likes(userID string) bool {
	_, ok := u.LikeOf(userID)
	return ok
}

// HasSwiped reports whether u has already decided on userID.
func (u *UserRecord) HasSwiped(userID string) bool {
	for _, id := range u.SwipedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// MatchWith returns u's match entry for userID, if any.
func (u *UserRecord) MatchWith(userID string) (Match, bool) {
	for _, m := range u.Matches {
		if m.MatchedUserID == userID {
			return m, true
		}
	}
	return Match{}, false
}

// Store is the document store client. Each call is atomic for the single
// document it touches and never atomic across documents.
//
// Implementations return errors wrapping errors.ErrNotFound when the user
// document does not exist and errors.ErrStoreUnavailable for any other failure.
type Store interface {
	// CreateUser creates an empty user document. No-op if it already exists.
	CreateUser(ctx context.Context, userID, displayName string) error

	Get(ctx context.Context, userID string) (*UserRecord, error)

	// GetAll returns every user document. Full scan, no pagination.
	GetAll(ctx context.Context) ([]UserRecord, error)

	// AppendToList adds item to the named list unless an entry with the same
	// MemberID is already present. Reports whether a new entry was written.
	AppendToList(ctx context.Context, userID string, list ListName, item Entry) (bool, error)

	// RemoveFromList removes the entry for memberID. No-op if absent.
	RemoveFromList(ctx context.Context, userID string, list ListName, memberID string) error
}

// LikerLookup is a secondary index answering "who liked userID".
// Results are candidates only: callers verify them against the likers' ledgers.
type LikerLookup interface {
	Likers(ctx context.Context, userID string) ([]string, error)
}

// LikerIndex is a LikerLookup that the Accessor keeps up to date on every
// like and unlike.
type LikerIndex interface {
	LikerLookup
	AddLiker(ctx context.Context, targetID, likerID string) error
	RemoveLiker(ctx context.Context, targetID, likerID string) error
	// MarkStale flags the index as untrustworthy until the next rebuild.
	MarkStale(ctx context.Context) error
}
