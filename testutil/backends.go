package testutil

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SkipIfNoMongo connects to the MongoDB given by MONGODB_URI (default
// localhost) or skips the test when it is unreachable. The returned
// cleanup disconnects the client.
func SkipIfNoMongo(t *testing.T) (*mongo.Client, func()) {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Skipf("Skipping MongoDB test: %v", err)
		return nil, func() {}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		t.Skipf("Skipping MongoDB test: %v", err)
		return nil, func() {}
	}

	cleanup := func() {
		client.Disconnect(context.Background())
	}
	return client, cleanup
}

// SkipIfNoRedis returns the Redis address from REDIS_ADDR (default
// localhost:6379) or skips the test when nothing listens there.
func SkipIfNoRedis(t *testing.T) string {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping Redis test: %v", err)
		return ""
	}
	conn.Close()
	return addr
}
