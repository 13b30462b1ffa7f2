package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"discourse-search-platform/models"
)

// StateStore persists per-file discovery state in the file_state collection,
// one row per corpus path. Writers are serialized behind a mutex; reads go
// straight to the driver's connection pool.
type StateStore struct {
	collection *mongo.Collection
	writeMu    sync.Mutex
}

func NewStateStore(db *mongo.Database) *StateStore {
	return &StateStore{
		collection: db.Collection("file_state"),
	}
}

// Get returns the state row for a path, or nil when the file is unseen.
func (s *StateStore) Get(ctx context.Context, path string) (*models.FileState, error) {
	var state models.FileState
	err := s.collection.FindOne(ctx, bson.M{"_id": path}).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, WrapError(KindFatal, path, fmt.Errorf("state read failed: %w", err))
	}
	return &state, nil
}

// Upsert atomically replaces the state row for state.Path.
func (s *StateStore) Upsert(ctx context.Context, state *models.FileState) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": state.Path}, state, opts)
	if err != nil {
		return WrapError(KindFatal, state.Path, fmt.Errorf("state upsert failed: %w", err))
	}
	return nil
}

// Delete removes the state row for a path removed from the corpus.
func (s *StateStore) Delete(ctx context.Context, path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": path})
	if err != nil {
		return WrapError(KindFatal, path, fmt.Errorf("state delete failed: %w", err))
	}
	return nil
}

// Ping verifies the backing database connection.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

// All streams every state row through the callback.
func (s *StateStore) All(ctx context.Context, fn func(*models.FileState) error) error {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return WrapError(KindFatal, "", fmt.Errorf("state scan failed: %w", err))
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var state models.FileState
		if err := cursor.Decode(&state); err != nil {
			return WrapError(KindFatal, "", fmt.Errorf("state decode failed: %w", err))
		}
		if err := fn(&state); err != nil {
			return err
		}
	}

	return cursor.Err()
}
