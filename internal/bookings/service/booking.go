package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"courtsync/internal/bookings/driver"
	bookingserrors "courtsync/internal/bookings/errors"
	"courtsync/internal/bookings/repository"
	"courtsync/internal/bookings/validator"
	ledgererrors "courtsync/internal/ledger/errors"
	ledgerservice "courtsync/internal/ledger/service"
	syncservice "courtsync/internal/sync/service"
	"courtsync/pkg/browser"
	"courtsync/pkg/config"
	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/model"
	"courtsync/pkg/sanitizer"
	"courtsync/pkg/sealer"
	"courtsync/pkg/timeslot"
)

// RefreshTrigger starts a targeted sync of the dates a booking touched.
type RefreshTrigger interface {
	TriggerCycle(trigger model.CycleTrigger, dates []string, force bool) (*syncservice.TriggerResult, error)
}

// AttemptSink receives completed booking attempts. Delivery is fire and
// forget; a sink must never block a booking.
type AttemptSink interface {
	AttemptRecorded(ctx context.Context, attempt *model.BookingAttempt)
}

type BookingService interface {
	// Book drives one booking through the live dashboard session and
	// returns the sealed attempt. The ledger is never written here; the
	// targeted refresh that follows brings the slot's truth in.
	Book(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error)
	GetAttempt(ctx context.Context, id string) (*model.BookingAttempt, error)
	ListAttempts(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, int64, error)
}

type bookingService struct {
	attempts  repository.AttemptRepository
	locks     repository.SlotLockRepository
	validator *validator.BookingValidator
	ledger    ledgerservice.LedgerService
	lock      ledgerservice.LockChecker
	session   browser.SessionProvider
	booker    driver.SlotBooker
	sealer    *sealer.Sealer
	refresher RefreshTrigger
	events    AttemptSink
	cal       *timeslot.Calendar
	cfg       *config.Config
}

func NewBookingService(
	attempts repository.AttemptRepository,
	locks repository.SlotLockRepository,
	bookingValidator *validator.BookingValidator,
	ledger ledgerservice.LedgerService,
	lock ledgerservice.LockChecker,
	session browser.SessionProvider,
	booker driver.SlotBooker,
	slotSealer *sealer.Sealer,
	refresher RefreshTrigger,
	events AttemptSink,
	cal *timeslot.Calendar,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		attempts:  attempts,
		locks:     locks,
		validator: bookingValidator,
		ledger:    ledger,
		lock:      lock,
		session:   session,
		booker:    booker,
		sealer:    slotSealer,
		refresher: refresher,
		events:    events,
		cal:       cal,
		cfg:       cfg,
	}
}

func (s *bookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error) {
	s.sanitize(req)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Booking request validation failed", "error", err)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{"error": err.Error()})
	}

	key, err := s.resolveSlot(req)
	if err != nil {
		return nil, err
	}
	if key.SlotStart.Before(time.Now()) {
		return nil, apperrors.InvalidInput("Cannot book a slot in the past")
	}

	if lock := s.lock.Lock(); lock.Locked {
		s.cfg.Log.Warn("Booking refused while locked", "facility", key.Facility, "reason", lock.Reason)
		return nil, apperrors.Wrap(ledgererrors.ErrLocked, apperrors.CodeLocked,
			"Sync is locked; bookings are refused", http.StatusLocked)
	}

	entry, err := s.ledger.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.StatusAvailable {
		return nil, apperrors.Conflict(fmt.Sprintf("Slot is %s, not AVAILABLE", entry.Status))
	}
	if entry.Sport == "" || entry.Court == "" {
		return nil, apperrors.Internal("Slot is missing sport and court details", nil)
	}

	// Advisory lock so two requests cannot drive the same slot at once.
	if err := s.acquireSlotLock(ctx, key); err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.locks.Release(ctx, key.String()); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "slot", key.String(), "error", releaseErr)
		}
	}()

	attempt := &model.BookingAttempt{
		ID:            uuid.NewString(),
		Facility:      key.Facility,
		SlotStart:     key.SlotStart,
		SlotEnd:       key.SlotEnd,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Status:        model.AttemptPending,
		RequestedAt:   time.Now().UTC(),
	}
	if err := s.attempts.Insert(ctx, attempt); err != nil {
		return nil, apperrors.Internal("Failed to record booking attempt", err)
	}

	page, err := s.session.GetPage(ctx, s.cfg.PlayoTabPattern)
	if err != nil {
		s.complete(ctx, attempt, model.AttemptFailed, "", fmt.Sprintf("acquiring dashboard tab: %v", err))
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable,
			"Booking platform session is unavailable", http.StatusServiceUnavailable).
			WithDetails(map[string]any{"attempt_id": attempt.ID})
	}

	order := &driver.Order{
		Sport:         entry.Sport,
		Court:         entry.Court,
		SlotStart:     key.SlotStart,
		SlotEnd:       key.SlotEnd,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Remarks:       req.Remarks,
	}

	ref, err := s.booker.Book(ctx, page, order)
	if err != nil {
		s.cfg.Log.Error("Booking failed",
			"attempt_id", attempt.ID,
			"facility", key.Facility,
			"error", err,
		)
		s.complete(ctx, attempt, model.AttemptFailed, "", err.Error())
		return nil, apperrors.Wrap(err, apperrors.CodeUnavailable,
			"Booking failed on the platform", http.StatusBadGateway).
			WithDetails(map[string]any{"attempt_id": attempt.ID})
	}

	s.complete(ctx, attempt, model.AttemptConfirmed, ref, "")
	s.cfg.Log.Info("Booking confirmed",
		"attempt_id", attempt.ID,
		"facility", key.Facility,
		"slot_start", key.SlotStart,
		"external_ref", ref,
	)

	s.triggerRefresh(key.SlotStart)
	return attempt, nil
}

func (s *bookingService) GetAttempt(ctx context.Context, id string) (*model.BookingAttempt, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Attempt ID cannot be empty")
	}

	attempt, err := s.attempts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking attempt", id)
		}
		return nil, apperrors.Internal("Failed to retrieve booking attempt", err)
	}
	return attempt, nil
}

func (s *bookingService) ListAttempts(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, int64, error) {
	var count int64
	var attempts []*model.BookingAttempt
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.attempts.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count booking attempts", "error", errCount)
			errCount = apperrors.Internal("Failed to count booking attempts", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		attempts, errFind = s.attempts.FindRecent(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list booking attempts", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve booking attempts", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return attempts, count, nil
}

// --- Helpers ---

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.CustomerName = sanitizer.TrimAndNormalize(req.CustomerName)
	req.CustomerPhone = sanitizer.NormalizePhone(req.CustomerPhone)
	req.CustomerEmail = sanitizer.TrimAndNormalize(req.CustomerEmail)
	req.Remarks = sanitizer.TrimAndNormalize(req.Remarks)
	req.Facility = sanitizer.TrimAndNormalize(req.Facility)
}

// resolveSlot turns the request into a slot key, opening the sealed
// reference when one is given. The reference wins over explicit fields.
func (s *bookingService) resolveSlot(req *model.BookingRequest) (model.SlotKey, error) {
	if req.SlotRef != "" {
		if s.sealer == nil {
			return model.SlotKey{}, apperrors.InvalidInput("Slot references are not enabled")
		}
		facility, start, end, err := s.sealer.OpenSlotRef(req.SlotRef)
		if err != nil {
			s.cfg.Log.Warn("Rejected slot reference", "error", err)
			return model.SlotKey{}, apperrors.InvalidInput("Invalid slot reference")
		}
		return model.SlotKey{Facility: facility, SlotStart: start.UTC(), SlotEnd: end.UTC()}, nil
	}

	return model.SlotKey{
		Facility:  req.Facility,
		SlotStart: req.SlotStart.UTC(),
		SlotEnd:   req.SlotEnd.UTC(),
	}, nil
}

func (s *bookingService) acquireSlotLock(ctx context.Context, key model.SlotKey) error {
	lock := &model.SlotLock{
		ID:        key.String(),
		ExpiresAt: time.Now().Add(s.cfg.BookingLockTTL),
	}

	if err := s.locks.Acquire(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.Wrap(bookingserrors.ErrSlotHeld, apperrors.CodeConflict,
				"This slot is currently being booked by another request. Please try again.",
				http.StatusConflict)
		}
		return apperrors.Internal("Failed to acquire slot lock", err)
	}
	return nil
}

// complete seals the attempt and hands it to the event sink. A failed seal
// is logged and swallowed: by this point the platform may already hold the
// booking, so the caller's outcome must not change.
func (s *bookingService) complete(ctx context.Context, attempt *model.BookingAttempt, status model.AttemptStatus, externalRef, errMsg string) {
	now := time.Now().UTC()
	attempt.Status = status
	attempt.ExternalRef = externalRef
	attempt.Error = errMsg
	attempt.CompletedAt = &now

	if err := s.attempts.Complete(ctx, attempt.ID, status, externalRef, errMsg); err != nil {
		s.cfg.Log.Error("Failed to seal booking attempt", "attempt_id", attempt.ID, "error", err)
	}
	if s.events != nil {
		s.events.AttemptRecorded(ctx, attempt)
	}
}

// triggerRefresh asks the scheduler for a targeted pass over the booked
// date so the ledger reflects the new state without waiting a full
// interval. A refused trigger is fine; the next scheduled cycle covers it.
func (s *bookingService) triggerRefresh(slotStart time.Time) {
	date := slotStart.In(s.cal.Location()).Format("2006-01-02")
	if _, err := s.refresher.TriggerCycle(model.TriggerRefresh, []string{date}, true); err != nil {
		s.cfg.Log.Info("Targeted refresh not started", "date", date, "reason", err)
	}
}
