package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// file_state is keyed by corpus path (_id); secondary index on status for
	// retry scans and failure reporting.
	stateCollection := db.Collection("file_state")
	stateIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "pdf_sha256", Value: 1}},
		},
	}
	_, err := stateCollection.Indexes().CreateMany(context.Background(), stateIndexes)
	if err != nil {
		return err
	}

	// ocr_page_cache rows are keyed by (pdf_sha256, page, engine)
	cacheCollection := db.Collection("ocr_page_cache")
	cacheIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pdf_sha256", Value: 1}, {Key: "page", Value: 1}, {Key: "engine", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = cacheCollection.Indexes().CreateMany(context.Background(), cacheIndexes)
	if err != nil {
		return err
	}

	return nil
}
