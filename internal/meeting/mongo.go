package meeting

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const meetingsCollection = "meetings"

// MongoStore keeps meetings in a MongoDB collection with a unique index on
// (course_id, start) so the same slot cannot be booked twice.
type MongoStore struct {
	meetings *mongo.Collection
}

// NewMongoStore returns a store backed by the given database.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{meetings: db.Collection(meetingsCollection)}
}

// EnsureIndexes creates the unique compound index guarding against double
// booking. Safe to call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.meetings.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "course_id", Value: 1},
			{Key: "start", Value: 1},
		},
		Options: options.Index().
			SetName("course_start_unique").
			SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create meetings index: %w", err)
	}
	return nil
}

type mongoMeeting struct {
	ID      primitive.ObjectID `bson:"_id,omitempty"`
	Meeting `bson:",inline"`
}

// listSort orders meetings chronologically. The date field derives from
// start, but both are part of the declared ordering contract.
var listSort = bson.D{
	{Key: "date", Value: 1},
	{Key: "start", Value: 1},
}

func (s *MongoStore) Insert(ctx context.Context, m *Meeting) (*Meeting, error) {
	res, err := s.meetings.InsertOne(ctx, mongoMeeting{Meeting: *m})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert meeting: %w", err)
	}

	out := *m
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		out.ID = oid.Hex()
	}
	return &out, nil
}

func (s *MongoStore) List(ctx context.Context, courseID string) ([]*Meeting, error) {
	filter := bson.M{}
	if courseID != "" {
		filter["course_id"] = courseID
	}

	cursor, err := s.meetings.Find(ctx, filter,
		options.Find().SetSort(listSort))
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer cursor.Close(ctx)

	var meetings []*Meeting
	for cursor.Next(ctx) {
		var doc mongoMeeting
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode meeting: %w", err)
		}
		m := doc.Meeting
		m.ID = doc.ID.Hex()
		meetings = append(meetings, &m)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetings: %w", err)
	}
	return meetings, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Meeting, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc mongoMeeting
	err = s.meetings.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}

	m := doc.Meeting
	m.ID = doc.ID.Hex()
	return &m, nil
}

func (s *MongoStore) Update(ctx context.Context, id string, in UpdateInput) (*Meeting, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{}
	if in.Subject != "" {
		set["subject"] = in.Subject
	}
	if in.Description != "" {
		set["description"] = in.Description
	}
	if in.Instructor != "" {
		set["instructor"] = in.Instructor
	}
	if in.RoomNumber != "" {
		set["room_number"] = in.RoomNumber
	}
	if in.Color != "" {
		set["color"] = in.Color
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}

	var doc mongoMeeting
	err = s.meetings.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update meeting: %w", err)
	}

	m := doc.Meeting
	m.ID = doc.ID.Hex()
	return &m, nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	res, err := s.meetings.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
