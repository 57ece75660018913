package repository

import "github.com/oggyb/moviematch/internal/ledger"

// applyEntry adds one stored list entry to the matching field of rec.
func applyEntry(rec *ledger.UserRecord, list ledger.ListName, e ledger.Entry) {
	switch list {
	case ledger.ListLikedUsers:
		rec.LikedUsers = append(rec.LikedUsers, ledger.Like{UserID: e.MemberID, Context: e.Context, LikedAt: e.At})
	case ledger.ListSwipedUsers:
		rec.SwipedUsers = append(rec.SwipedUsers, e.MemberID)
	case ledger.ListMatches:
		rec.Matches = append(rec.Matches, ledger.Match{MatchedUserID: e.MemberID, MatchedAt: e.At, Context: e.Context})
	}
}
