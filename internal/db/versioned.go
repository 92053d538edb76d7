package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpdateVersioned applies update to the document only if its version is
// still version, bumps the version and decodes the new document into out.
// A missing match is reported as ErrVersionConflict.
func UpdateVersioned(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, version int64, update bson.M, out interface{}) error {
	if update == nil {
		update = bson.M{}
	}
	inc, _ := update["$inc"].(bson.M)
	if inc == nil {
		inc = bson.M{}
	}
	inc["version"] = 1
	update["$inc"] = inc

	set, _ := update["$set"].(bson.M)
	if set == nil {
		set = bson.M{}
	}
	set["updated_at"] = time.Now().UTC()
	update["$set"] = set

	filter := bson.M{"_id": id, "version": version}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("versioned update of %s: %w", id.Hex(), err)
	}
	return nil
}

// InsertOne assigns an id when doc has none and inserts it.
func InsertOne[T interface{ GenIDIfEmpty() }](ctx context.Context, coll *mongo.Collection, doc T) (T, error) {
	doc.GenIDIfEmpty()
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return doc, fmt.Errorf("insert into %s: %w", coll.Name(), err)
	}
	return doc, nil
}
