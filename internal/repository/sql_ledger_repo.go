package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/moviematch/internal/db"
	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
)

// SQLLedgerRepository stores user documents as a users row plus one
// ledger_entries row per list item. It implements ledger.Store and
// ledger.LikerLookup.
type SQLLedgerRepository struct {
	db *gorm.DB
}

// NewSQLLedgerRepository creates a new repository bound to the given DB connection.
func NewSQLLedgerRepository(database *gorm.DB) *SQLLedgerRepository {
	return &SQLLedgerRepository{db: database}
}

// CreateUser inserts the user header row. Existing users are left untouched.
func (r *SQLLedgerRepository) CreateUser(ctx context.Context, userID, displayName string) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.User{ID: userID, DisplayName: displayName}).Error
	return sqlErr(err)
}

// Get loads one user with all three lists.
//
// Behavior:
//   - Returns ErrNotFound if no users row exists.
//   - Entries are returned oldest first (at ASC, member_id ASC).
func (r *SQLLedgerRepository) Get(ctx context.Context, userID string) (*ledger.UserRecord, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		return nil, sqlErr(err)
	}

	var entries []db.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("at ASC, member_id ASC").
		Find(&entries).Error; err != nil {
		return nil, sqlErr(err)
	}

	rec := &ledger.UserRecord{ID: u.ID, DisplayName: u.DisplayName}
	for _, e := range entries {
		applyEntry(rec, ledger.ListName(e.List), ledger.Entry{MemberID: e.MemberID, Context: e.Context, At: e.At})
	}
	return rec, nil
}

// GetAll loads every user. Two queries, no pagination.
func (r *SQLLedgerRepository) GetAll(ctx context.Context) ([]ledger.UserRecord, error) {
	var users []db.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, sqlErr(err)
	}

	var entries []db.LedgerEntry
	if err := r.db.WithContext(ctx).
		Order("user_id ASC, at ASC, member_id ASC").
		Find(&entries).Error; err != nil {
		return nil, sqlErr(err)
	}

	records := make([]ledger.UserRecord, len(users))
	pos := make(map[string]int, len(users))
	for i, u := range users {
		records[i] = ledger.UserRecord{ID: u.ID, DisplayName: u.DisplayName}
		pos[u.ID] = i
	}
	for _, e := range entries {
		i, ok := pos[e.UserID]
		if !ok {
			continue // orphan row, user deleted
		}
		applyEntry(&records[i], ledger.ListName(e.List), ledger.Entry{MemberID: e.MemberID, Context: e.Context, At: e.At})
	}
	return records, nil
}

// AppendToList inserts the entry unless (user, list, member) already exists.
//
// Behavior:
//   - Returns ErrNotFound if the user does not exist.
//   - The composite PK plus ON CONFLICT DO NOTHING makes the insert idempotent,
//     also across processes racing on the same row.
func (r *SQLLedgerRepository) AppendToList(ctx context.Context, userID string, list ledger.ListName, item ledger.Entry) (bool, error) {
	if err := r.requireUser(ctx, userID); err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.LedgerEntry{
			UserID:   userID,
			List:     string(list),
			MemberID: item.MemberID,
			Context:  item.Context,
			At:       item.At,
		})
	if res.Error != nil {
		return false, sqlErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RemoveFromList deletes the entry for memberID if present.
func (r *SQLLedgerRepository) RemoveFromList(ctx context.Context, userID string, list ledger.ListName, memberID string) error {
	if err := r.requireUser(ctx, userID); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND list = ? AND member_id = ?", userID, string(list), memberID).
		Delete(&db.LedgerEntry{}).Error
	return sqlErr(err)
}

// Likers returns ids of users whose liked_users contains userID, using
// idx_list_member_user.
func (r *SQLLedgerRepository) Likers(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.LedgerEntry{}).
		Where("list = ? AND member_id = ?", string(ledger.ListLikedUsers), userID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, sqlErr(err)
	}
	return ids, nil
}

// Reset wipes all users and ledger entries.
func (r *SQLLedgerRepository) Reset(ctx context.Context) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Exec("DELETE FROM ledger_entries").Error; err != nil {
		return fmt.Errorf("failed to clear ledger entries: %w", sqlErr(err))
	}
	if err := tx.Exec("DELETE FROM users").Error; err != nil {
		return fmt.Errorf("failed to clear users: %w", sqlErr(err))
	}
	return nil
}

func (r *SQLLedgerRepository) requireUser(ctx context.Context, userID string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return sqlErr(err)
	}
	if count == 0 {
		return fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	return nil
}

// sqlErr classifies a gorm error into the ledger error kinds.
func sqlErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return svcErr.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", svcErr.ErrStoreUnavailable, err)
	}
}
