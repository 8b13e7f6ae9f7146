package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/plumefeed/backend/internal/errors"
	"github.com/plumefeed/backend/internal/logger"
)

// MongoStore implements Store on top of a MongoDB deployment. Multi-document
// transactions ride on mongo sessions; WithTransaction retries the body on
// transient conflicts, which is why transaction bodies must be idempotent.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore connects to MongoDB and pings it before returning
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Transient("mongo connect", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, errors.Transient("mongo ping", err)
	}

	logger.Log.Info("Connected to MongoDB", zap.String("database", dbName))

	return &MongoStore{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Database exposes the underlying database for the change-stream listener
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

// Close disconnects the underlying client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// Get decodes the document at (collection, id) into out
func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.col(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err == mongo.ErrNoDocuments {
		return errors.NotFound(collection + "/" + id)
	}
	if err != nil {
		return errors.Transient("document read", err)
	}
	return nil
}

// Create inserts doc at (collection, id), failing if the id is taken
func (s *MongoStore) Create(ctx context.Context, collection, id string, doc any) error {
	m, err := withID(doc, id)
	if err != nil {
		return err
	}
	if _, err := s.col(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.AlreadyExists(collection + "/" + id)
		}
		return errors.Transient("document create", err)
	}
	return nil
}

// Set replaces the document at (collection, id), creating it if absent
func (s *MongoStore) Set(ctx context.Context, collection, id string, doc any) error {
	m, err := withID(doc, id)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col(collection).ReplaceOne(ctx, bson.M{"_id": id}, m, opts); err != nil {
		return errors.Transient("document set", err)
	}
	return nil
}

// Update applies field-level changes; nil values unset the field
func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{}
	unset := bson.M{}
	for k, v := range fields {
		if v == nil {
			unset[k] = ""
		} else {
			set[k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}
	res, err := s.col(collection).UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Transient("document update", err)
	}
	if res.MatchedCount == 0 {
		return errors.NotFound(collection + "/" + id)
	}
	return nil
}

// Delete removes the document; deleting a missing document is a no-op
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.col(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Transient("document delete", err)
	}
	return nil
}

// Increment atomically adds delta to a numeric field. A missing document
// is a no-op: the parent was deleted out from under the child event.
func (s *MongoStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	_, err := s.col(collection).UpdateByID(ctx, id, bson.M{"$inc": bson.M{field: delta}})
	if err != nil {
		return errors.Transient("counter increment", err)
	}
	return nil
}

// DecrementClamped decrements a counter only while it is positive
func (s *MongoStore) DecrementClamped(ctx context.Context, collection, id, field string) error {
	filter := bson.M{"_id": id, field: bson.M{"$gt": 0}}
	_, err := s.col(collection).UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: -1}})
	if err != nil {
		return errors.Transient("counter decrement", err)
	}
	return nil
}

// FindRecent returns up to limit matching documents, newest first
func (s *MongoStore) FindRecent(ctx context.Context, collection string, filter map[string]any, limit int, out any) error {
	f := bson.M{}
	for k, v := range filter {
		f[k] = v
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.col(collection).Find(ctx, f, opts)
	if err != nil {
		return errors.Transient("document query", err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return errors.Transient("document decode", err)
	}
	return nil
}

// RunTransaction runs fn inside a mongo session transaction. The session
// context threads through fn's ctx, so the same store methods operate
// transactionally inside the body.
func (s *MongoStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return errors.Transient("session start", err)
	}
	defer session.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx, s)
	}, txOpts)
	if err != nil {
		// Preserve pipeline error codes raised by the body
		if code := errors.CodeOf(err); code != errors.ErrInternal {
			return err
		}
		return errors.Transient("transaction", err)
	}
	return nil
}

// withID normalizes doc to a bson map carrying the given _id
func withID(doc any, id string) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Internal("document encode", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, errors.Internal("document encode", err)
	}
	m["_id"] = id
	return m, nil
}
