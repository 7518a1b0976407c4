// Package mongo wraps the driver's session API behind a small seam so
// repositories can run multi-document writes transactionally and tests
// can substitute a no-op manager.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	apperrors "courtsync/pkg/errors"
)

// TransactionFunc runs inside an active transaction. Every repository
// call made from it must use the session context it receives.
type TransactionFunc func(ctx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type transactionManager struct {
	client *mongo.Client
}

// NewTransactionManager needs a client connected to a replica set;
// standalone servers do not support transactions.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &transactionManager{client: client}
}

func (m *transactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})
	if err != nil {
		// Domain errors pass through untouched so handlers can map them.
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}
