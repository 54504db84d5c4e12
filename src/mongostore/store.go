// Package mongostore runs the foreign key engine against MongoDB. Every proxy update
// maps to a single UpdateOne or UpdateMany call, which MongoDB applies atomically per
// document.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"syndrlinks/src/document"
	"syndrlinks/src/foreignkeys"
	"syndrlinks/src/helpers"
)

type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	objectIDs bool
	logger    *zap.SugaredLogger
}

var (
	_ document.Backend     = (*Store)(nil)
	_ document.IDGenerator = (*Store)(nil)
)

type Options struct {
	// ObjectIDs stores document ids and reference keys as ObjectIDs. Callers keep
	// working with their hex form.
	ObjectIDs bool
}

// Connect dials uri and checks the connection before returning.
func Connect(ctx context.Context, uri, database string, opts Options, logger *zap.SugaredLogger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Infof("Connected to MongoDB database %s", database)
	return New(client.Database(database), opts, logger), nil
}

// New wraps an already connected database.
func New(db *mongo.Database, opts Options, logger *zap.SugaredLogger) *Store {
	return &Store{client: db.Client(), db: db, objectIDs: opts.ObjectIDs, logger: logger}
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// NewID returns the id for a new document: an ObjectID in hex form when the store
// uses ObjectIDs, a UUID otherwise.
func (s *Store) NewID() string {
	if s.objectIDs {
		return primitive.NewObjectID().Hex()
	}
	return helpers.GenerateUUID()
}

func (s *Store) UpdateOne(ctx context.Context, collection string, id any, op foreignkeys.Operator, field string, value any) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	value, err = s.value(op, value)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, idFilter(key), updateDocument(op, field, value))
	if err != nil {
		return err
	}
	s.logger.Debugf("%s %s=%v on %s %v matched %d", op, field, value, collection, key, res.MatchedCount)
	return nil
}

func (s *Store) UpdateMany(ctx context.Context, collection string, ids []any, op foreignkeys.Operator, field string, value any) error {
	keys := make([]any, len(ids))
	for i, id := range ids {
		key, err := s.key(id)
		if err != nil {
			return err
		}
		keys[i] = key
	}
	value, err := s.value(op, value)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(collection).UpdateMany(ctx, idsFilter(keys), updateDocument(op, field, value))
	if err != nil {
		return err
	}
	s.logger.Debugf("%s %s=%v on %d of %d %s", op, field, value, res.MatchedCount, len(ids), collection)
	return nil
}

func (s *Store) Insert(ctx context.Context, collection, id string, fields map[string]any) error {
	key, err := s.key(id)
	if err != nil {
		return err
	}
	doc := make(bson.M, len(fields)+1)
	for k, v := range fields {
		doc[k] = s.list(v)
	}
	doc["_id"] = key
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return err
	}
	return nil
}

// FindByID returns the stored fields. Reference arrays keep whatever key type is
// stored; the field constraint converts them.
func (s *Store) FindByID(ctx context.Context, collection, id string) (map[string]any, error) {
	key, err := s.key(id)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	err = s.db.Collection(collection).FindOne(ctx, idFilter(key)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s %s", document.ErrNotFound, collection, id)
	}
	if err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return doc, nil
}

// key converts a document id into its stored form.
func (s *Store) key(id any) (any, error) {
	if !s.objectIDs {
		return id, nil
	}
	return foreignkeys.ObjectIDConstraint(id)
}

// value converts the operand of op. $addToSet and $pull always carry a single
// reference key; $set may carry a whole reference list.
func (s *Store) value(op foreignkeys.Operator, value any) (any, error) {
	if !s.objectIDs {
		return value, nil
	}
	switch op {
	case foreignkeys.AddToSet, foreignkeys.Pull:
		return s.key(value)
	}
	return s.list(value), nil
}

// list converts the hex strings of an id list into ObjectIDs. Other values, and
// elements that are not valid hex ids, are stored as given.
func (s *Store) list(value any) any {
	values, ok := value.([]any)
	if !s.objectIDs || !ok {
		return value
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
		if hex, ok := v.(string); ok && primitive.IsValidObjectID(hex) {
			out[i], _ = primitive.ObjectIDFromHex(hex)
		}
	}
	return out
}

// updateDocument builds e.g. {"$addToSet": {"person_ids": id}}.
func updateDocument(op foreignkeys.Operator, field string, value any) bson.M {
	return bson.M{string(op): bson.M{field: value}}
}

func idFilter(id any) bson.M {
	return bson.M{"_id": id}
}

func idsFilter(ids []any) bson.M {
	return bson.M{"_id": bson.M{"$in": ids}}
}
