package token

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Store = &MongoStore{}

// MongoStore is a MongoDB-backed credential store. Insert and Latest are
// single-document operations, so they are atomic with respect to each other
// at the storage layer. Retention is enforced by a TTL index on created_at;
// the store sweeps expired records on its own, the Manager never polls.
type MongoStore struct {
	tokens *mongo.Collection
	window time.Duration
}

// NewMongoStore creates a store backed by the "tokens" collection of the
// given database.
func NewMongoStore(db *mongo.Database, window time.Duration) *MongoStore {
	return &MongoStore{
		tokens: db.Collection("tokens"),
		window: window,
	}
}

// EnsureIndexes creates the TTL index for the retention window. A window of
// zero would expire records at creation time; that is a deployment
// misconfiguration the store does not second-guess.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().
			SetName("created_at_ttl").
			SetExpireAfterSeconds(int32(s.window / time.Second)),
	})
	if err != nil {
		return &PersistenceError{Op: "ensure indexes", Err: err}
	}
	return nil
}

// mongoRecord pairs the stored fields with the Mongo document id.
type mongoRecord struct {
	ID     primitive.ObjectID `bson:"_id"`
	Record `bson:",inline"`
}

func (r *mongoRecord) toRecord() *Record {
	rec := r.Record
	rec.ID = r.ID.Hex()
	return &rec
}

// Insert appends a new record and fills in its store-assigned ID.
func (s *MongoStore) Insert(ctx context.Context, rec *Record) error {
	res, err := s.tokens.InsertOne(ctx, bson.M{
		"user_id":       rec.PrincipalID,
		"access_token":  rec.AccessToken,
		"refresh_token": rec.RefreshToken,
		"scope":         rec.Scope,
		"token_type":    rec.TokenType,
		"expiry_date":   rec.ProviderExpiry,
		"created_at":    rec.CreatedAt,
	})
	if err != nil {
		return &PersistenceError{Op: "insert", Err: err}
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = oid.Hex()
	}
	return nil
}

// Latest returns the most recently created record for the principal, or
// ErrNoToken when none exists.
func (s *MongoStore) Latest(ctx context.Context, principalID string) (*Record, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc mongoRecord
	err := s.tokens.FindOne(ctx, bson.M{"user_id": principalID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoToken
		}
		return nil, &PersistenceError{Op: "latest", Err: err}
	}
	return doc.toRecord(), nil
}

// List returns all records, newest first. Callers are responsible for
// redacting secrets before exposing the result.
func (s *MongoStore) List(ctx context.Context) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.tokens.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var out []Record
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, &PersistenceError{Op: "list", Err: err}
		}
		out = append(out, *doc.toRecord())
	}
	if err := cursor.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

// Delete removes one record by id. A missing or malformed id reports
// ErrNoToken so the caller can answer "not found".
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNoToken
	}

	res, err := s.tokens.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	if res.DeletedCount == 0 {
		return ErrNoToken
	}
	return nil
}

// DeleteAll removes every record. Idempotent.
func (s *MongoStore) DeleteAll(ctx context.Context) error {
	if _, err := s.tokens.DeleteMany(ctx, bson.M{}); err != nil {
		return &PersistenceError{Op: "delete all", Err: err}
	}
	return nil
}
