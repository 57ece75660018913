package db

import (
	"time"
)

// User is the document header for one registered user.
type User struct {
	ID          string    `gorm:"primaryKey;size:64"`
	DisplayName string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// LedgerEntry is one item of a user's liked_users, swiped_users or matches list.
//
// Composite PK: (UserID, List, MemberID)
//   - At most one entry per member per list; inserts use ON CONFLICT DO NOTHING.
//
// Indexes:
//   - idx_list_member_user(list, member_id, user_id)
//     Serves "who liked me" lookups (list = liked_users, member_id = me).
//
// Fields:
//   - UserID: owner of the list.
//   - List: liked_users | swiped_users | matches.
//   - MemberID: the other user.
//   - Context: like context / match context, empty for swipes.
//   - At: likedAt / swipe time / matchedAt.
type LedgerEntry struct {
	UserID    string    `gorm:"primaryKey;size:64;index:idx_list_member_user,priority:3"`
	List      string    `gorm:"primaryKey;size:16;index:idx_list_member_user,priority:1"`
	MemberID  string    `gorm:"primaryKey;size:64;index:idx_list_member_user,priority:2"`
	Context   string    `gorm:"size:255"`
	At        time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
