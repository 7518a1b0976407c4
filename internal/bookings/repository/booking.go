package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "courtsync/internal/bookings/errors"
	"courtsync/pkg/config"
	"courtsync/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Booking_attempts"
)

// AttemptRepository stores the audit trail of driven bookings.
type AttemptRepository interface {
	Insert(ctx context.Context, attempt *model.BookingAttempt) error
	Complete(ctx context.Context, id string, status model.AttemptStatus, externalRef, errMsg string) error
	FindByID(ctx context.Context, id string) (*model.BookingAttempt, error)
	FindRecent(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, error)
	Count(ctx context.Context) (int64, error)
}

type mongoAttemptRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewAttemptRepository(cfg *config.Config) AttemptRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAttemptRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoAttemptRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoAttemptRepository) Insert(ctx context.Context, attempt *model.BookingAttempt) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	attempt.RequestedAt = attempt.RequestedAt.UTC().Truncate(time.Millisecond)
	if _, err := r.collection.InsertOne(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record booking attempt: %w", err)
	}
	return nil
}

func (r *mongoAttemptRepository) Complete(ctx context.Context, id string, status model.AttemptStatus, externalRef, errMsg string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{"$set": bson.M{
		"status":       status,
		"external_ref": externalRef,
		"error":        errMsg,
		"completed_at": now,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to complete booking attempt: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("completing attempt %s: %w", id, bookingserrors.ErrNotFound)
	}
	return nil
}

func (r *mongoAttemptRepository) FindByID(ctx context.Context, id string) (*model.BookingAttempt, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var attempt model.BookingAttempt
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&attempt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking attempt: %w", err)
	}
	return &attempt, nil
}

func (r *mongoAttemptRepository) FindRecent(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "requested_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking attempts: %w", err)
	}
	defer cursor.Close(ctx)

	var attempts []*model.BookingAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, fmt.Errorf("failed to decode booking attempts: %w", err)
	}
	return attempts, nil
}

func (r *mongoAttemptRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count booking attempts: %w", err)
	}
	return count, nil
}
