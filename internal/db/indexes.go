package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the query paths depend on. The matching
// funnel runs as one indexed lookup over (cell-or-zip, category, type); the
// availability window and conversation key have their own indexes. Safe to
// call on every startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	listingIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "cell", Value: 1}, {Key: "category", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "zip", Value: 1}, {Key: "category", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "available_from", Value: 1}, {Key: "available_to", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := db.Collection("listings").Indexes().CreateMany(ctx, listingIndexes); err != nil {
		return fmt.Errorf("failed to create listing indexes: %w", err)
	}

	userIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := db.Collection("users").Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_key", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}}},
	}
	if _, err := db.Collection("messages").Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	reportIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "listing_id", Value: 1}}},
	}
	if _, err := db.Collection("reports").Indexes().CreateMany(ctx, reportIndexes); err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}

	return nil
}
