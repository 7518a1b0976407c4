package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	ledgererrors "courtsync/internal/ledger/errors"
	"courtsync/internal/ledger/repository"
	"courtsync/pkg/config"
	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/model"
)

// LockChecker reports whether the panic lock is engaged. The sync engine
// owns the lock; the ledger only refuses writes while it is on.
type LockChecker interface {
	Lock() model.SystemLock
}

// SlotQuery filters the reconciled slot view.
type SlotQuery struct {
	From     time.Time
	To       time.Time
	Facility string
	Statuses []model.SlotStatus
	Limit    int
	Offset   int64
}

type LedgerService interface {
	// ApplyMutations applies a reconciled batch inside one transaction.
	// Stale slots are skipped and reported, never fatal; any other write
	// error aborts the whole batch.
	ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error)

	// SnapshotByKeys returns the stored entries for the given slots,
	// keyed for reconciliation.
	SnapshotByKeys(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error)

	GetSlots(ctx context.Context, q SlotQuery) ([]*model.LedgerEntry, int64, error)
	GetByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error)
}

type ledgerService struct {
	repo repository.LedgerRepository
	lock LockChecker
	cfg  *config.Config
}

func NewLedgerService(repo repository.LedgerRepository, lock LockChecker, cfg *config.Config) LedgerService {
	return &ledgerService{
		repo: repo,
		lock: lock,
		cfg:  cfg,
	}
}

func (s *ledgerService) ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error) {
	if lock := s.lock.Lock(); lock.Locked {
		s.cfg.Log.Warn("Refusing ledger mutations while locked", "reason", lock.Reason, "mutations", len(mutations))
		return nil, apperrors.Wrap(ledgererrors.ErrLocked, apperrors.CodeLocked,
			"Sync is locked; ledger writes are suspended", http.StatusLocked)
	}

	result := &model.ApplyResult{}
	if len(mutations) == 0 {
		return result, nil
	}

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		for _, m := range mutations {
			var err error
			switch m.Op {
			case model.MutationInsert:
				entry := m.Entry
				err = s.repo.Insert(sessCtx, &entry)
			case model.MutationUpdate:
				entry := m.Entry
				err = s.repo.UpdateVersioned(sessCtx, &entry, m.ExpectedVersion)
			default:
				return apperrors.Internal("Unknown ledger mutation op", nil)
			}

			if err != nil {
				if ledgererrors.IsStaleVersion(err) {
					result.Stale = append(result.Stale, m.Entry.Key())
					continue
				}
				return apperrors.Internal("Failed to apply ledger mutation", err)
			}
			result.Applied++
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to apply ledger mutations", "mutations", len(mutations), "error", err)
		return nil, err
	}

	if len(result.Stale) > 0 {
		s.cfg.Log.Warn("Skipped stale ledger mutations",
			"applied", result.Applied,
			"stale", len(result.Stale),
		)
	}
	s.cfg.Log.Info("Ledger mutations applied",
		"mutations", len(mutations),
		"applied", result.Applied,
		"stale", len(result.Stale),
	)
	return result, nil
}

func (s *ledgerService) SnapshotByKeys(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error) {
	entries, err := s.repo.FindByKeys(ctx, keys)
	if err != nil {
		s.cfg.Log.Error("Failed to snapshot ledger entries", "keys", len(keys), "error", err)
		return nil, apperrors.Internal("Failed to load ledger snapshot", err)
	}

	snapshot := make(map[model.SlotKey]*model.LedgerEntry, len(entries))
	for _, entry := range entries {
		snapshot[entry.Key()] = entry
	}
	return snapshot, nil
}

func (s *ledgerService) GetSlots(ctx context.Context, q SlotQuery) ([]*model.LedgerEntry, int64, error) {
	var count int64
	var entries []*model.LedgerEntry
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountByWindow(ctx, q.From, q.To, q.Facility, q.Statuses)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count slots", "error", errCount)
			errCount = apperrors.Internal("Failed to count slots", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		entries, errFind = s.repo.FindByWindow(ctx, q.From, q.To, q.Facility, q.Statuses, q.Limit, q.Offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list slots", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve slots", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return entries, count, nil
}

func (s *ledgerService) GetByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error) {
	if key.Facility == "" {
		return nil, apperrors.InvalidInput("Facility cannot be empty")
	}

	entry, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ledgererrors.ErrNotFound) {
			return nil, apperrors.NotFound("Slot")
		}
		return nil, apperrors.Internal("Failed to retrieve slot", err)
	}

	return entry, nil
}
