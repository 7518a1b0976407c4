package repository

import (
	"context"
	"time"

	"courtsync/pkg/config"
	"courtsync/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SlotLockRepository provides the per-slot advisory locks held while a
// booking is being driven. The collection carries a TTL index on
// expires_at so abandoned locks fall away on their own.
type SlotLockRepository interface {
	Acquire(ctx context.Context, lock *model.SlotLock) error
	Release(ctx context.Context, id string) error
}

type mongoSlotLockRepository struct {
	collection *mongo.Collection
}

func NewSlotLockRepository(cfg *config.Config) SlotLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLockRepository{
		collection: db.Collection("Slot_locks"),
	}
}

// Returns duplicate key error if the lock is already held
func (r *mongoSlotLockRepository) Acquire(ctx context.Context, lock *model.SlotLock) error {
	lock.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

// Release removes an advisory lock
func (r *mongoSlotLockRepository) Release(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
