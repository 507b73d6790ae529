package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"coedit/core"
)

// MongoStore implements Store on top of MongoDB. RunEditTransaction
// uses a session transaction; the final document write is additionally
// filtered on the version read inside the same transaction, so a
// matched count of zero surfaces as ErrConflict instead of silently
// overwriting a concurrent commit.
type MongoStore struct {
	client     *mongo.Client
	documents  *mongo.Collection
	operations *mongo.Collection
	options    *Options
	logger     *zap.Logger
	closed     bool
}

// NewMongoStore creates a MongoStore and ensures the indexes the edit
// pipeline depends on: a unique compound index on
// (document_id, applied_version) for the operation log, a plain index
// on document_id, and an owner_id index on documents.
func NewMongoStore(ctx context.Context, client *mongo.Client, opts ...Option) (*MongoStore, error) {
	o := NewOptions(opts...)

	db := client.Database(o.DatabaseName)
	s := &MongoStore{
		client:     client,
		documents:  db.Collection(o.DocumentsCollection),
		operations: db.Collection(o.OperationsCollection),
		options:    o,
		logger:     core.With(zap.String("component", "mongo_store")),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	opIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "document_id", Value: 1},
				{Key: "applied_version", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "document_id", Value: 1}},
		},
	}
	if _, err := s.operations.Indexes().CreateMany(ctx, opIndexes); err != nil {
		return err
	}

	docIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
	}
	_, err := s.documents.Indexes().CreateMany(ctx, docIndexes)
	return err
}

// InsertDocument creates a new document row.
func (s *MongoStore) InsertDocument(ctx context.Context, doc *Document) error {
	if s.closed {
		return ErrClosed
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	if _, err := s.documents.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	s.logger.Debug("Document inserted",
		zap.String("document_id", doc.ID),
		zap.String("owner_id", doc.OwnerID))

	return nil
}

// FindDocument retrieves a document by ID.
func (s *MongoStore) FindDocument(ctx context.Context, id string) (*Document, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.findDocument(ctx, s.documents, id)
}

func (s *MongoStore) findDocument(ctx context.Context, coll *mongo.Collection, id string) (*Document, error) {
	var doc Document
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return &doc, nil
}

// SetDocumentTitle updates the document title only.
func (s *MongoStore) SetDocumentTitle(ctx context.Context, id, title string) (*Document, error) {
	if s.closed {
		return nil, ErrClosed
	}

	update := bson.M{"$set": bson.M{
		"title":      title,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc Document
	err := s.documents.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update document title: %w", err)
	}
	return &doc, nil
}

// ListOperations returns operations with applied_version > afterVersion
// ordered ascending.
func (s *MongoStore) ListOperations(ctx context.Context, documentID string, afterVersion int64) ([]*Operation, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.listOperations(ctx, documentID, afterVersion)
}

func (s *MongoStore) listOperations(ctx context.Context, documentID string, afterVersion int64) ([]*Operation, error) {
	filter := bson.M{
		"document_id":     documentID,
		"applied_version": bson.M{"$gt": afterVersion},
	}
	opts := options.Find().SetSort(bson.D{{Key: "applied_version", Value: 1}})

	cursor, err := s.operations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}
	defer cursor.Close(ctx)

	var ops []*Operation
	if err := cursor.All(ctx, &ops); err != nil {
		return nil, fmt.Errorf("failed to decode operations: %w", err)
	}
	return ops, nil
}

// RunEditTransaction runs fn inside a MongoDB session transaction.
func (s *MongoStore) RunEditTransaction(ctx context.Context, documentID string, baseVersion int64, fn EditFunc) (*Operation, int64, error) {
	if s.closed {
		return nil, 0, ErrClosed
	}

	session, err := s.client.StartSession()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadPreference(readpref.Primary()).
		SetReadConcern(readconcern.Local()).
		SetWriteConcern(writeconcern.Majority())
	if s.options.MaxCommitTime > 0 {
		maxCommit := s.options.MaxCommitTime
		txnOpts.SetMaxCommitTime(&maxCommit)
	}

	var (
		committedOp      *Operation
		committedVersion int64
	)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		doc, err := s.findDocument(sessCtx, s.documents, documentID)
		if err != nil {
			return nil, err
		}

		missed, err := s.listOperations(sessCtx, documentID, baseVersion)
		if err != nil {
			return nil, err
		}

		newContent, op, err := fn(doc, missed)
		if err != nil {
			return nil, err
		}

		if op.ID.IsZero() {
			op.ID = primitive.NewObjectID()
		}
		if op.CreatedAt.IsZero() {
			op.CreatedAt = time.Now().UTC()
		}

		// The filter re-checks the version read above so a racing
		// commit aborts this one instead of being overwritten.
		res, err := s.documents.UpdateOne(sessCtx,
			bson.M{"_id": documentID, "version": doc.Version},
			bson.M{"$set": bson.M{
				"content":    newContent,
				"version":    op.AppliedVersion,
				"updated_at": time.Now().UTC(),
			}})
		if err != nil {
			return nil, fmt.Errorf("failed to write document: %w", err)
		}
		if res.MatchedCount == 0 {
			return nil, NewConflictError(documentID, doc.Version, -1)
		}

		if _, err := s.operations.InsertOne(sessCtx, op); err != nil {
			return nil, fmt.Errorf("failed to append operation: %w", err)
		}

		committedOp = op
		committedVersion = op.AppliedVersion
		return nil, nil
	}, txnOpts)

	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("edit transaction failed: %w", err)
	}

	s.logger.Debug("Edit transaction committed",
		zap.String("document_id", documentID),
		zap.Int64("base_version", baseVersion),
		zap.Int64("applied_version", committedVersion))

	return committedOp, committedVersion, nil
}

// Close marks the store closed. The MongoDB client is owned by the
// caller and is not disconnected here.
func (s *MongoStore) Close(ctx context.Context) error {
	s.closed = true
	return nil
}
