// Package utils holds helpers shared by store-backed tests.
package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"agrolink/api/internal/db"
)

// MongoURI reads MONGO_URI, loading the repository's .env first when present.
func MongoURI() string {
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		return uri
	}
	_, file, _, _ := runtime.Caller(0)
	_ = godotenv.Load(filepath.Join(filepath.Dir(file), "..", "..", ".env"))
	return os.Getenv("MONGO_URI")
}

// SetupTestDB opens a database private to t, clears the named collections
// and drops the whole database when the test ends. Tests skip without
// MONGO_URI.
func SetupTestDB(t *testing.T, dbName string, collections ...string) *mongo.Database {
	t.Helper()
	uri := MongoURI()
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping store-backed test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := fmt.Sprintf("%s_%s", dbName, strings.ToLower(strings.ReplaceAll(t.Name(), "/", "_")))
	if len(name) > 63 {
		name = name[:63]
	}
	client, database, err := db.ConnectDB(ctx, uri, name)
	require.NoError(t, err, "connect test database")

	for _, collection := range collections {
		require.NoError(t, database.Collection(collection).Drop(ctx), "drop %s", collection)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = database.Drop(ctx)
		_ = db.DisconnectDB(ctx, client)
	})
	return database
}
