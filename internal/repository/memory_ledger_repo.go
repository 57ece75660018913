package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpCreate Op = "create"
	OpGet    Op = "get"
	OpGetAll Op = "get_all"
	OpAppend Op = "append"
	OpRemove Op = "remove"
	OpLikers Op = "likers"
)

// FaultFunc is consulted before every operation. A non-nil return makes the
// operation fail with ErrStoreUnavailable without touching any document.
// It is called without the repository lock held, so it may call back into
// the repository to simulate another device acting mid-sequence.
type FaultFunc func(op Op, userID string, list ledger.ListName) error

type memDoc struct {
	displayName string
	lists       map[ledger.ListName][]ledger.Entry
}

// MemoryLedgerRepository is an in-process ledger.Store. Each operation is
// atomic per document, matching the guarantees of the real backends.
type MemoryLedgerRepository struct {
	mu    sync.Mutex
	docs  map[string]*memDoc
	fault FaultFunc
}

func NewMemoryLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{docs: make(map[string]*memDoc)}
}

// SetFault installs (or with nil, clears) the fault hook.
func (r *MemoryLedgerRepository) SetFault(f FaultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fault = f
}

func (r *MemoryLedgerRepository) check(ctx context.Context, op Op, userID string, list ledger.ListName) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", svcErr.ErrStoreUnavailable, err)
	}
	r.mu.Lock()
	f := r.fault
	r.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := f(op, userID, list); err != nil {
		return fmt.Errorf("%w: %s %s: %v", svcErr.ErrStoreUnavailable, op, userID, err)
	}
	return nil
}

func (r *MemoryLedgerRepository) CreateUser(ctx context.Context, userID, displayName string) error {
	if err := r.check(ctx, OpCreate, userID, ""); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[userID]; !ok {
		r.docs[userID] = &memDoc{displayName: displayName, lists: make(map[ledger.ListName][]ledger.Entry)}
	}
	return nil
}

func (r *MemoryLedgerRepository) Get(ctx context.Context, userID string) (*ledger.UserRecord, error) {
	if err := r.check(ctx, OpGet, userID, ""); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	rec := d.record(userID)
	return &rec, nil
}

func (r *MemoryLedgerRepository) GetAll(ctx context.Context) ([]ledger.UserRecord, error) {
	if err := r.check(ctx, OpGetAll, "", ""); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]ledger.UserRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.docs[id].record(id))
	}
	return out, nil
}

func (r *MemoryLedgerRepository) AppendToList(ctx context.Context, userID string, list ledger.ListName, item ledger.Entry) (bool, error) {
	if err := r.check(ctx, OpAppend, userID, list); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[userID]
	if !ok {
		return false, fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	for _, e := range d.lists[list] {
		if e.MemberID == item.MemberID {
			return false, nil
		}
	}
	d.lists[list] = append(d.lists[list], item)
	return true, nil
}

func (r *MemoryLedgerRepository) RemoveFromList(ctx context.Context, userID string, list ledger.ListName, memberID string) error {
	if err := r.check(ctx, OpRemove, userID, list); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	kept := d.lists[list][:0]
	for _, e := range d.lists[list] {
		if e.MemberID != memberID {
			kept = append(kept, e)
		}
	}
	d.lists[list] = kept
	return nil
}

// Likers scans all documents for likes of userID.
func (r *MemoryLedgerRepository) Likers(ctx context.Context, userID string) ([]string, error) {
	if err := r.check(ctx, OpLikers, userID, ledger.ListLikedUsers); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, d := range r.docs {
		for _, e := range d.lists[ledger.ListLikedUsers] {
			if e.MemberID == userID {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Reset drops every document.
func (r *MemoryLedgerRepository) Reset(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = make(map[string]*memDoc)
	return nil
}

// record copies d into a UserRecord so callers never alias internal slices.
func (d *memDoc) record(id string) ledger.UserRecord {
	rec := ledger.UserRecord{ID: id, DisplayName: d.displayName}
	for _, list := range []ledger.ListName{ledger.ListLikedUsers, ledger.ListSwipedUsers, ledger.ListMatches} {
		for _, e := range d.lists[list] {
			applyEntry(&rec, list, e)
		}
	}
	return rec
}
