package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes every collection relies on. It is safe
// to call on every start.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_email")},
		},
		"products": {
			{Keys: bson.D{{Key: "farmer", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}}},
		},
		"contracts": {
			{Keys: bson.D{{Key: "farmer", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "buyer", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"messages": {
			{Keys: bson.D{{Key: "contract", Value: 1}, {Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "read", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		"payments": {
			{Keys: bson.D{{Key: "contract", Value: 1}, {Key: "stage", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
			{
				Keys:    bson.D{{Key: "gateway_request_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_gateway_request").
					SetPartialFilterExpression(bson.M{"gateway_request_id": bson.M{"$type": "string"}}),
			},
			{
				Keys:    bson.D{{Key: "active_key", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_active_stage").
					SetPartialFilterExpression(bson.M{"active_key": bson.M{"$type": "string"}}),
			},
		},
		"processed_events": {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_key")},
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expires_at")},
		},
		"email_templates": {
			{Keys: bson.D{{Key: "template_id", Value: 1}, {Key: "locale", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := database.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", name, err)
		}
	}
	return nil
}
