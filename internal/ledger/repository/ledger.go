package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	ledgererrors "courtsync/internal/ledger/errors"
	"courtsync/pkg/config"
	mongotx "courtsync/pkg/db/mongo"
	"courtsync/pkg/model"
)

const (
	CollectionName = "Ledger_entries"
)

type mongoLedgerRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type LedgerRepository interface {
	Insert(ctx context.Context, entry *model.LedgerEntry) error
	UpdateVersioned(ctx context.Context, entry *model.LedgerEntry, expectedVersion int64) error
	FindByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error)
	FindByWindow(ctx context.Context, from, to time.Time, facility string, statuses []model.SlotStatus, limit int, offset int64) ([]*model.LedgerEntry, error)
	CountByWindow(ctx context.Context, from, to time.Time, facility string, statuses []model.SlotStatus) (int64, error)
	FindByKeys(ctx context.Context, keys []model.SlotKey) ([]*model.LedgerEntry, error)
	Count(ctx context.Context) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoLedgerRepository(cfg *config.Config) LedgerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoLedgerRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context
// unchanged with a no-op cancel function, as wrapping a SessionContext breaks
// transaction semantics.
func (r *mongoLedgerRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// Insert creates a fresh entry at version 1. The unique slot index turns a
// racing insert into a duplicate key error, which callers treat as stale.
func (r *mongoLedgerRepository) Insert(ctx context.Context, entry *model.LedgerEntry) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &ledgererrors.StaleVersionError{Key: entry.Key(), ExpectedVersion: 0}
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		entry.ID = oid.Hex()
	}
	return nil
}

// UpdateVersioned replaces an entry's mutable state only when the stored
// version still matches expectedVersion. A miss is reported as stale, not
// as an error that would abort the surrounding batch.
func (r *mongoLedgerRepository) UpdateVersioned(ctx context.Context, entry *model.LedgerEntry, expectedVersion int64) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"facility":   entry.Facility,
		"slot_start": entry.SlotStart,
		"slot_end":   entry.SlotEnd,
		"version":    expectedVersion,
	}
	set := bson.M{
		"status":          entry.Status,
		"source_of_truth": entry.SourceOfTruth,
		"last_synced_at":  entry.LastSyncedAt,
		"version":         entry.Version,
	}
	// external_ids is optional; the schema rejects an explicit null.
	if len(entry.ExternalIDs) > 0 {
		set["external_ids"] = entry.ExternalIDs
	}
	update := bson.M{"$set": set}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update ledger entry: %w", err)
	}

	if result.MatchedCount == 0 {
		return &ledgererrors.StaleVersionError{Key: entry.Key(), ExpectedVersion: expectedVersion}
	}

	return nil
}

func (r *mongoLedgerRepository) FindByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"facility":   key.Facility,
		"slot_start": key.SlotStart,
		"slot_end":   key.SlotEnd,
	}

	var entry model.LedgerEntry
	err := r.collection.FindOne(ctx, filter).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledgererrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}

	return &entry, nil
}

func (r *mongoLedgerRepository) FindByWindow(
	ctx context.Context,
	from, to time.Time,
	facility string,
	statuses []model.SlotStatus,
	limit int, offset int64,
) ([]*model.LedgerEntry, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildWindowFilter(from, to, facility, statuses)

	opts := options.Find().
		SetSort(bson.D{{Key: "slot_start", Value: 1}, {Key: "facility", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

func (r *mongoLedgerRepository) CountByWindow(
	ctx context.Context,
	from, to time.Time,
	facility string,
	statuses []model.SlotStatus,
) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := r.buildWindowFilter(from, to, facility, statuses)

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}

func (r *mongoLedgerRepository) buildWindowFilter(from, to time.Time, facility string, statuses []model.SlotStatus) bson.M {
	filter := bson.M{}

	if !from.IsZero() || !to.IsZero() {
		timeFilter := bson.M{}
		if !from.IsZero() {
			timeFilter["$gte"] = from
		}
		if !to.IsZero() {
			timeFilter["$lt"] = to
		}
		filter["slot_start"] = timeFilter
	}

	if facility != "" {
		filter["facility"] = facility
	}

	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	return filter
}

// FindByKeys loads the stored entries for the given slots in one query.
// Slots with no entry yet are simply absent from the result.
func (r *mongoLedgerRepository) FindByKeys(ctx context.Context, keys []model.SlotKey) ([]*model.LedgerEntry, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	clauses := make([]bson.M, 0, len(keys))
	for _, key := range keys {
		clauses = append(clauses, bson.M{
			"facility":   key.Facility,
			"slot_start": key.SlotStart,
			"slot_end":   key.SlotEnd,
		})
	}

	cursor, err := r.collection.Find(ctx, bson.M{"$or": clauses})
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries by keys: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*model.LedgerEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

func (r *mongoLedgerRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

func (r *mongoLedgerRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
