package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"courtsync/pkg/model"
)

const (
	LedgerEntriesCollection   = "Ledger_entries"
	SyncCyclesCollection      = "Sync_cycles"
	BookingAttemptsCollection = "Booking_attempts"
)

// MongoHelper provides direct database access for seeding and cleanup
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

// NewMongoHelper creates a new MongoDB test helper
func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	if mongoURI == "" {
		mongoURI = DefaultMongoURI
	}
	if dbName == "" {
		dbName = DefaultDatabaseName
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	return &MongoHelper{
		Client:   client,
		Database: client.Database(dbName),
		DBName:   dbName,
	}
}

// Close closes MongoDB connection
func (m *MongoHelper) Close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}

// SeedLedgerEntry inserts a ledger entry directly, bypassing the sync engine,
// and registers cleanup so the entry disappears when the test finishes.
func (m *MongoHelper) SeedLedgerEntry(t *testing.T, entry *model.LedgerEntry) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coll := m.Database.Collection(LedgerEntriesCollection)
	if _, err := coll.InsertOne(ctx, entry); err != nil {
		t.Fatalf("failed to seed ledger entry: %v", err)
	}

	t.Cleanup(func() {
		m.RemoveLedgerEntries(t, entry.Facility)
	})
}

// RemoveLedgerEntries deletes every ledger entry for a facility
func (m *MongoHelper) RemoveLedgerEntries(t *testing.T, facility string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coll := m.Database.Collection(LedgerEntriesCollection)
	if _, err := coll.DeleteMany(ctx, bson.M{"facility": facility}); err != nil {
		t.Logf("warning: failed to remove ledger entries for %s: %v", facility, err)
	}
}

// CountDocuments returns the number of documents in a collection
func (m *MongoHelper) CountDocuments(t *testing.T, collectionName string) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	count, err := m.Database.Collection(collectionName).CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatalf("failed to count documents in %s: %v", collectionName, err)
	}
	return count
}

// GetCollection returns a collection for direct access
func (m *MongoHelper) GetCollection(collectionName string) *mongo.Collection {
	return m.Database.Collection(collectionName)
}
