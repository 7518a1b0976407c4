package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	syncerrors "courtsync/internal/sync/errors"
	"courtsync/pkg/config"
	"courtsync/pkg/model"
)

const (
	CollectionName = "Sync_cycles"
)

type mongoCycleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// CycleRepository persists the append-only cycle audit trail. A record is
// inserted when its cycle starts and sealed exactly once when it ends.
type CycleRepository interface {
	Insert(ctx context.Context, record *model.SyncCycleRecord) error
	Seal(ctx context.Context, record *model.SyncCycleRecord) error
	FindLatest(ctx context.Context) (*model.SyncCycleRecord, error)
	FindRecent(ctx context.Context, limit int, offset int64) ([]*model.SyncCycleRecord, error)
	Count(ctx context.Context) (int64, error)
}

func NewMongoCycleRepository(cfg *config.Config) CycleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCycleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoCycleRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoCycleRepository) Insert(ctx context.Context, record *model.SyncCycleRecord) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	record.StartedAt = record.StartedAt.Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert sync cycle: %w", err)
	}
	return nil
}

// Seal writes the cycle's final state. Only unsealed records match, so a
// second seal of the same cycle is a no-op reported as an error.
func (r *mongoCycleRepository) Seal(ctx context.Context, record *model.SyncCycleRecord) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": record.ID, "finished_at": nil}
	set := bson.M{
		"finished_at": record.FinishedAt,
		"outcome":     record.Outcome,
		"sources":     record.Sources,
		"facts":       record.Facts,
		"mutations":   record.Mutations,
		"applied":     record.Applied,
	}
	// stale and error are optional; the schema rejects an explicit null.
	if len(record.Stale) > 0 {
		set["stale"] = record.Stale
	}
	if record.Error != "" {
		set["error"] = record.Error
	}
	update := bson.M{"$set": set}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to seal sync cycle: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("sealing cycle %s: %w", record.ID, syncerrors.ErrCycleNotFound)
	}
	return nil
}

func (r *mongoCycleRepository) FindLatest(ctx context.Context) (*model.SyncCycleRecord, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})
	var record model.SyncCycleRecord
	err := r.collection.FindOne(ctx, bson.M{}, opts).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, syncerrors.ErrCycleNotFound
		}
		return nil, fmt.Errorf("failed to find latest sync cycle: %w", err)
	}
	return &record, nil
}

func (r *mongoCycleRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.SyncCycleRecord, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetSkip(offset).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find sync cycles: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*model.SyncCycleRecord, 0, limit)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode sync cycles: %w", err)
	}
	return records, nil
}

func (r *mongoCycleRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count sync cycles: %w", err)
	}
	return count, nil
}
