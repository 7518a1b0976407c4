package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ledgererrors "courtsync/internal/ledger/errors"
	syncerrors "courtsync/internal/sync/errors"
	"courtsync/internal/sync/repository"
	"courtsync/pkg/config"
	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/timeslot"
)

// CycleExecutor runs one cycle to completion and returns its sealed record.
type CycleExecutor interface {
	Run(ctx context.Context, id string, trigger model.CycleTrigger, dates []string) *model.SyncCycleRecord
}

type cycleOrder struct {
	id      string
	trigger model.CycleTrigger
	dates   []string
}

// TriggerResult reports what a trigger actually started. Targeted dates
// inside the refresh cooldown are skipped, not queued.
type TriggerResult struct {
	CycleID string   `json:"cycle_id,omitempty"`
	Dates   []string `json:"dates,omitempty"`
	Skipped []string `json:"skipped_dates,omitempty"`
	Started bool     `json:"started"`
}

// Scheduler owns the engine state machine: IDLE ↔ RUNNING for cycles, with
// the panic lock orthogonal to both. At most one cycle runs at a time and
// the periodic interval is measured from the end of the previous cycle.
type Scheduler struct {
	cfg    *config.Config
	cal    *timeslot.Calendar
	runner CycleExecutor
	keeper *LockKeeper
	cycles repository.CycleRepository
	events EventSink
	log    *logger.Logger

	mu          sync.Mutex
	state       model.EngineState
	lastCycle   *model.SyncCycleRecord
	nextRunAt   *time.Time
	lastScraped map[string]time.Time

	orders chan cycleOrder
	done   chan struct{}
}

func NewScheduler(
	cfg *config.Config,
	cal *timeslot.Calendar,
	runner CycleExecutor,
	keeper *LockKeeper,
	cycles repository.CycleRepository,
	events EventSink,
) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		cal:         cal,
		runner:      runner,
		keeper:      keeper,
		cycles:      cycles,
		events:      events,
		log:         cfg.Log,
		state:       model.EngineIdle,
		lastScraped: make(map[string]time.Time),
		orders:      make(chan cycleOrder, 1),
		done:        make(chan struct{}),
	}
}

// Start seeds the status view from the audit trail and launches the engine
// loop. The first scheduled cycle fires immediately.
func (s *Scheduler) Start(ctx context.Context) {
	if last, err := s.cycles.FindLatest(ctx); err == nil {
		s.mu.Lock()
		s.lastCycle = last
		s.mu.Unlock()
	} else if !errors.Is(err, syncerrors.ErrCycleNotFound) {
		s.log.Warn("Could not load last sync cycle", "error", err)
	}
	go s.loop(ctx)
}

// Stopped closes when the engine loop has exited.
func (s *Scheduler) Stopped() <-chan struct{} {
	return s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(0)
	defer timer.Stop()
	s.setNextRun(time.Now().UTC())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Sync scheduler stopped")
			return
		case order := <-s.orders:
			s.execute(ctx, order)
		case <-timer.C:
			s.runScheduled(ctx)
		}
		timer.Reset(s.cfg.SyncInterval)
		s.setNextRun(time.Now().UTC().Add(s.cfg.SyncInterval))
	}
}

func (s *Scheduler) setNextRun(at time.Time) {
	s.mu.Lock()
	s.nextRunAt = &at
	s.mu.Unlock()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	if lock := s.keeper.Lock(); lock.Locked {
		s.log.Warn("Skipping scheduled cycle while locked", "reason", lock.Reason)
		return
	}

	s.mu.Lock()
	if s.state == model.EngineRunning {
		// A claimed manual order is waiting in the channel; let it run.
		s.mu.Unlock()
		return
	}
	s.state = model.EngineRunning
	s.mu.Unlock()

	s.execute(ctx, cycleOrder{
		id:      uuid.NewString(),
		trigger: model.TriggerScheduled,
		dates:   s.cal.Window(s.cfg.SyncWindowDays),
	})
}

func (s *Scheduler) execute(ctx context.Context, order cycleOrder) {
	record := s.runner.Run(ctx, order.id, order.trigger, order.dates)

	s.mu.Lock()
	s.state = model.EngineIdle
	s.lastCycle = record
	if record != nil && record.Outcome != model.OutcomeFailed {
		now := time.Now().UTC()
		for _, d := range order.dates {
			s.lastScraped[d] = now
		}
		for d, at := range s.lastScraped {
			if now.Sub(at) > 24*time.Hour {
				delete(s.lastScraped, d)
			}
		}
	}
	s.mu.Unlock()
}

// TriggerCycle starts a cycle outside the periodic cadence. With dates it is
// a targeted refresh honoring the cooldown unless forced; without dates it
// syncs the full window. The cycle itself runs on the engine loop; the
// returned result only says what was accepted.
func (s *Scheduler) TriggerCycle(trigger model.CycleTrigger, dates []string, force bool) (*TriggerResult, error) {
	if lock := s.keeper.Lock(); lock.Locked {
		return nil, apperrors.Wrap(ledgererrors.ErrLocked, apperrors.CodeLocked,
			"Sync is locked; triggers are refused", http.StatusLocked)
	}

	var skipped []string
	if len(dates) > 0 {
		cleaned := make([]string, 0, len(dates))
		seen := make(map[string]struct{}, len(dates))
		for _, d := range dates {
			d = strings.TrimSpace(d)
			if _, err := s.cal.ParseDate(d); err != nil {
				return nil, apperrors.InvalidInput("invalid date, must be YYYY-MM-DD")
			}
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			if !force && s.withinCooldown(d) {
				skipped = append(skipped, d)
				continue
			}
			cleaned = append(cleaned, d)
		}
		if len(cleaned) == 0 {
			return &TriggerResult{Skipped: skipped}, nil
		}
		dates = cleaned
	} else {
		dates = s.cal.Window(s.cfg.SyncWindowDays)
	}

	s.mu.Lock()
	if s.state == model.EngineRunning {
		s.mu.Unlock()
		return nil, apperrors.Wrap(syncerrors.ErrCycleInProgress, apperrors.CodeConflict,
			"A sync cycle is already running", http.StatusConflict)
	}
	s.state = model.EngineRunning
	s.mu.Unlock()

	order := cycleOrder{id: uuid.NewString(), trigger: trigger, dates: dates}
	s.orders <- order
	s.log.Info("Sync cycle triggered", "cycle_id", order.id, "trigger", trigger, "dates", dates, "skipped", skipped)
	return &TriggerResult{CycleID: order.id, Dates: dates, Skipped: skipped, Started: true}, nil
}

func (s *Scheduler) withinCooldown(date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastScraped[date]
	return ok && time.Since(at) < s.cfg.RefreshCooldown
}

// Status is the control-surface view of the engine.
func (s *Scheduler) Status() model.EngineStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.EngineStatus{
		State:     s.state,
		Lock:      s.keeper.Lock(),
		LastCycle: s.lastCycle,
		NextRunAt: s.nextRunAt,
	}
}

// SetLock flips the panic lock. Engaging requires a reason so the audit
// trail explains itself; a running cycle is left to finish but its results
// will be discarded at apply time.
func (s *Scheduler) SetLock(ctx context.Context, update model.LockUpdate) (model.SystemLock, error) {
	update.Reason = strings.TrimSpace(update.Reason)
	if update.Locked && update.Reason == "" {
		return model.SystemLock{}, apperrors.Validation("Reason is required when engaging the lock", nil)
	}

	lock, changed := s.keeper.Set(update)
	if changed && s.events != nil {
		s.events.LockChanged(ctx, lock)
	}
	return lock, nil
}

// Cycles pages through the audit trail, newest first.
func (s *Scheduler) Cycles(ctx context.Context, limit int, offset int64) ([]*model.SyncCycleRecord, int64, error) {
	var (
		wg       sync.WaitGroup
		records  []*model.SyncCycleRecord
		total    int64
		findErr  error
		countErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		records, findErr = s.cycles.FindRecent(ctx, limit, offset)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.cycles.Count(ctx)
	}()
	wg.Wait()

	if findErr != nil {
		return nil, 0, apperrors.Internal("Failed to list sync cycles", findErr)
	}
	if countErr != nil {
		return nil, 0, apperrors.Internal("Failed to count sync cycles", countErr)
	}
	return records, total, nil
}
