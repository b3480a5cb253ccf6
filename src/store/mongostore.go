package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ClientProvider hands out the live mongo client and the process test-mode
// flag. The connection package implements this.
type ClientProvider interface {
	Client(ctx context.Context) (*mongo.Client, error)
	TestMode() bool
}

// MongoStore is the mongod-backed Store. Every call is a blocking round
// trip; the store holds no cursors or transactions across calls.
type MongoStore struct {
	provider ClientProvider
	logger   *zap.SugaredLogger
}

func NewMongoStore(provider ClientProvider, logger *zap.SugaredLogger) *MongoStore {
	return &MongoStore{provider: provider, logger: logger}
}

func (s *MongoStore) collection(ctx context.Context, path Path) (*mongo.Collection, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get mongo client: %w", err)
	}
	if s.provider.TestMode() {
		path = testPath(path)
	}
	return client.Database(path.Database).Collection(path.Collection), nil
}

func (s *MongoStore) FindOne(ctx context.Context, path Path, filter bson.M) (bson.D, error) {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return nil, err
	}
	var doc bson.D
	err = coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("find one on %s failed: %w", path, err)
	}
	return doc, nil
}

func (s *MongoStore) Find(ctx context.Context, path Path, filter bson.M, opts FindOptions) ([]bson.D, error) {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return nil, err
	}
	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if len(opts.Projection) > 0 {
		findOpts.SetProjection(opts.Projection)
	}
	if filter == nil {
		filter = bson.M{}
	}
	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find on %s failed: %w", path, err)
	}
	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading find results from %s failed: %w", path, err)
	}
	return docs, nil
}

func (s *MongoStore) Count(ctx context.Context, path Path, filter bson.M) (int64, error) {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return 0, err
	}
	if filter == nil {
		filter = bson.M{}
	}
	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count on %s failed: %w", path, err)
	}
	return n, nil
}

func (s *MongoStore) Insert(ctx context.Context, path Path, doc bson.D) error {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, path)
		}
		return fmt.Errorf("insert into %s failed: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Replace(ctx context.Context, path Path, id interface{}, doc bson.D, upsert bool) error {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return err
	}
	replaceOpts := options.Replace().SetUpsert(upsert)
	if _, err := coll.ReplaceOne(ctx, bson.M{IDKey: id}, doc, replaceOpts); err != nil {
		return fmt.Errorf("replace in %s failed: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, path Path, id interface{}, update bson.M) error {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return err
	}
	if _, err := coll.UpdateOne(ctx, bson.M{IDKey: id}, update); err != nil {
		return fmt.Errorf("update in %s failed: %w", path, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, path Path, id interface{}) error {
	coll, err := s.collection(ctx, path)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{IDKey: id}); err != nil {
		return fmt.Errorf("delete from %s failed: %w", path, err)
	}
	return nil
}
