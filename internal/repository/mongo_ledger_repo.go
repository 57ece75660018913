package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	svcErr "github.com/oggyb/moviematch/internal/errors"
	"github.com/oggyb/moviematch/internal/ledger"
)

type mongoEntry struct {
	MemberID string    `bson:"member_id"`
	Context  string    `bson:"context,omitempty"`
	At       time.Time `bson:"at"`
}

type mongoUser struct {
	ID          string       `bson:"_id"`
	DisplayName string       `bson:"display_name"`
	LikedUsers  []mongoEntry `bson:"liked_users"`
	SwipedUsers []mongoEntry `bson:"swiped_users"`
	Matches     []mongoEntry `bson:"matches"`
	CreatedAt   time.Time    `bson:"created_at"`
}

// MongoLedgerRepository keeps one document per user in the "users"
// collection, with the three lists as embedded arrays.
type MongoLedgerRepository struct {
	c *mongo.Collection
}

func NewMongoLedgerRepository(database *mongo.Database) *MongoLedgerRepository {
	return &MongoLedgerRepository{c: database.Collection("users")}
}

// EnsureIndexes creates the multikey index backing Likers.
func (r *MongoLedgerRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "liked_users.member_id", Value: 1}},
		Options: options.Index().SetName("idx_liked_member"),
	})
	return mongoErr(err)
}

// CreateUser upserts an empty document; an existing one is left alone.
func (r *MongoLedgerRepository) CreateUser(ctx context.Context, userID, displayName string) error {
	_, err := r.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": bson.M{
			"display_name": displayName,
			"liked_users":  bson.A{},
			"swiped_users": bson.A{},
			"matches":      bson.A{},
			"created_at":   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		return nil // lost an upsert race, the document exists
	}
	return mongoErr(err)
}

func (r *MongoLedgerRepository) Get(ctx context.Context, userID string) (*ledger.UserRecord, error) {
	var doc mongoUser
	if err := r.c.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		return nil, mongoErr(err)
	}
	rec := doc.record()
	return &rec, nil
}

func (r *MongoLedgerRepository) GetAll(ctx context.Context) ([]ledger.UserRecord, error) {
	cur, err := r.c.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mongoErr(err)
	}
	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err)
	}

	out := make([]ledger.UserRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

// AppendToList pushes item only if no element with the same member_id is
// present. The guard and the push are one single-document update.
func (r *MongoLedgerRepository) AppendToList(ctx context.Context, userID string, list ledger.ListName, item ledger.Entry) (bool, error) {
	field := string(list)
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": userID, field + ".member_id": bson.M{"$ne": item.MemberID}},
		bson.M{"$push": bson.M{field: mongoEntry{MemberID: item.MemberID, Context: item.Context, At: item.At}}},
	)
	if err != nil {
		return false, mongoErr(err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}

	// nothing matched: either the entry exists or the user does not
	n, err := r.c.CountDocuments(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, mongoErr(err)
	}
	if n == 0 {
		return false, fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	return false, nil
}

func (r *MongoLedgerRepository) RemoveFromList(ctx context.Context, userID string, list ledger.ListName, memberID string) error {
	res, err := r.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{string(list): bson.M{"member_id": memberID}}},
	)
	if err != nil {
		return mongoErr(err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, svcErr.ErrNotFound)
	}
	return nil
}

// Likers returns ids of users whose liked_users contains userID.
func (r *MongoLedgerRepository) Likers(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.c.Find(ctx,
		bson.M{"liked_users.member_id": userID},
		options.Find().
			SetProjection(bson.M{"_id": 1}).
			SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, mongoErr(err)
	}
	var rows []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, mongoErr(err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// Reset deletes every user document.
func (r *MongoLedgerRepository) Reset(ctx context.Context) error {
	_, err := r.c.DeleteMany(ctx, bson.D{})
	return mongoErr(err)
}

func (d mongoUser) record() ledger.UserRecord {
	rec := ledger.UserRecord{ID: d.ID, DisplayName: d.DisplayName}
	for _, e := range d.LikedUsers {
		applyEntry(&rec, ledger.ListLikedUsers, ledger.Entry{MemberID: e.MemberID, Context: e.Context, At: e.At.UTC()})
	}
	for _, e := range d.SwipedUsers {
		applyEntry(&rec, ledger.ListSwipedUsers, ledger.Entry{MemberID: e.MemberID, At: e.At.UTC()})
	}
	for _, e := range d.Matches {
		applyEntry(&rec, ledger.ListMatches, ledger.Entry{MemberID: e.MemberID, Context: e.Context, At: e.At.UTC()})
	}
	return rec
}

func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return svcErr.ErrNotFound
	default:
		return fmt.Errorf("%w: %v", svcErr.ErrStoreUnavailable, err)
	}
}
