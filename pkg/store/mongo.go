package store

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/go-go-golems/parley/pkg/conversation"
)

const collectionName = "conversations"

// MongoStore persists conversations in a MongoDB collection, one document per
// conversation with the full message history embedded.
type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		coll: db.Collection(collectionName),
	}
}

func (s *MongoStore) Get(ctx context.Context, id primitive.ObjectID) (*conversation.Conversation, error) {
	var conv conversation.Conversation
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable(err, "get conversation")
	}
	return &conv, nil
}

func (s *MongoStore) Put(ctx context.Context, conv *conversation.Conversation) error {
	next := conv.Clone()
	next.Revision = conv.Revision + 1

	filter := bson.M{"_id": conv.ID, "revision": conv.Revision}
	res, err := s.coll.ReplaceOne(ctx, filter, next)
	if err != nil {
		return wrapUnavailable(err, "put conversation")
	}
	if res.MatchedCount == 0 {
		// Either the record is gone or someone else won the revision race.
		n, err := s.coll.CountDocuments(ctx, bson.M{"_id": conv.ID})
		if err != nil {
			return wrapUnavailable(err, "put conversation")
		}
		if n == 0 {
			return conversation.ErrNotFound
		}
		return conversation.ErrConflict
	}

	conv.Revision = next.Revision
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, conv *conversation.Conversation) (primitive.ObjectID, error) {
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, conv); err != nil {
		return primitive.NilObjectID, wrapUnavailable(err, "insert conversation")
	}
	log.Debug().Str("conversation_id", conv.ID.Hex()).Msg("inserted conversation document")
	return conv.ID, nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, wrapUnavailable(err, "delete conversation")
	}
	return res.DeletedCount > 0, nil
}

func (s *MongoStore) List(ctx context.Context) ([]conversation.Summary, error) {
	projection := bson.M{"_id": 1, "name": 1, "params": 1, "tokens": 1}
	cur, err := s.coll.Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return nil, wrapUnavailable(err, "list conversations")
	}

	summaries := []conversation.Summary{}
	if err := cur.All(ctx, &summaries); err != nil {
		return nil, wrapUnavailable(err, "list conversations")
	}
	return summaries, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return wrapUnavailable(err, "ping")
	}
	return nil
}

// unavailableError keeps the driver error as cause while matching
// conversation.ErrStoreUnavailable under errors.Is.
type unavailableError struct {
	op  string
	err error
}

func (e *unavailableError) Error() string {
	return e.op + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() error {
	return e.err
}

func (e *unavailableError) Is(target error) bool {
	return target == conversation.ErrStoreUnavailable
}

func wrapUnavailable(err error, op string) error {
	return &unavailableError{op: op, err: err}
}
