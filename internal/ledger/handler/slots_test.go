package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"courtsync/internal/ledger/service"
	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/sealer"
	"courtsync/pkg/timeslot"
)

// Mock service for testing
type mockLedgerService struct {
	getSlotsFunc func(ctx context.Context, q service.SlotQuery) ([]*model.LedgerEntry, int64, error)
}

func (m *mockLedgerService) ApplyMutations(ctx context.Context, mutations []model.LedgerMutation) (*model.ApplyResult, error) {
	return &model.ApplyResult{}, nil
}

func (m *mockLedgerService) SnapshotByKeys(ctx context.Context, keys []model.SlotKey) (map[model.SlotKey]*model.LedgerEntry, error) {
	return nil, nil
}

func (m *mockLedgerService) GetSlots(ctx context.Context, q service.SlotQuery) ([]*model.LedgerEntry, int64, error) {
	if m.getSlotsFunc != nil {
		return m.getSlotsFunc(ctx, q)
	}
	return []*model.LedgerEntry{}, 0, nil
}

func (m *mockLedgerService) GetByKey(ctx context.Context, key model.SlotKey) (*model.LedgerEntry, error) {
	return nil, apperrors.NotFound("Slot")
}

func testCalendar(t *testing.T) *timeslot.Calendar {
	t.Helper()
	cal, err := timeslot.NewCalendar("Asia/Kolkata")
	if err != nil {
		t.Fatalf("building calendar: %v", err)
	}
	return cal
}

func testSlotRouter(t *testing.T, svc *mockLedgerService, s *sealer.Sealer) *httprouter.Router {
	t.Helper()
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	router := httprouter.New()
	NewSlotHandler(svc, testCalendar(t), s, log).RegisterRoutes(router)
	return router
}

func TestGetSlotsFiltersReachService(t *testing.T) {
	var received service.SlotQuery
	svc := &mockLedgerService{
		getSlotsFunc: func(ctx context.Context, q service.SlotQuery) ([]*model.LedgerEntry, int64, error) {
			received = q
			return []*model.LedgerEntry{}, 0, nil
		},
	}
	router := testSlotRouter(t, svc, nil)

	target := "/api/v1/slots?date=2026-09-01&facility=++Test+Court++&status=booked,conflict&limit=5&offset=2"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if received.Facility != "Test Court" {
		t.Errorf("facility = %q, want trimmed %q", received.Facility, "Test Court")
	}
	wantFrom, wantTo, err := testCalendar(t).DayBounds("2026-09-01")
	if err != nil {
		t.Fatalf("computing expected bounds: %v", err)
	}
	if !received.From.Equal(wantFrom) || !received.To.Equal(wantTo) {
		t.Errorf("window = [%s, %s), want [%s, %s)", received.From, received.To, wantFrom, wantTo)
	}
	if len(received.Statuses) != 2 ||
		received.Statuses[0] != model.StatusBooked ||
		received.Statuses[1] != model.StatusConflict {
		t.Errorf("statuses = %v, want [BOOKED CONFLICT]", received.Statuses)
	}
	if received.Limit != 5 || received.Offset != 2 {
		t.Errorf("pagination = limit %d offset %d, want 5/2", received.Limit, received.Offset)
	}

	var envelope struct {
		Data       []json.RawMessage `json:"data"`
		TotalCount int64             `json:"total_count"`
		Limit      int               `json:"limit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Limit != 5 || len(envelope.Data) != 0 {
		t.Errorf("envelope = %+v, want empty page with limit 5", envelope)
	}
}

func TestGetSlotsRejectsBadFilters(t *testing.T) {
	router := testSlotRouter(t, &mockLedgerService{}, nil)

	tests := []struct {
		name   string
		target string
	}{
		{"bad date", "/api/v1/slots?date=next-friday"},
		{"bad from", "/api/v1/slots?from=yesterday"},
		{"bad to", "/api/v1/slots?to=later"},
		{"unknown status", "/api/v1/slots?status=TAKEN"},
		{"bad limit", "/api/v1/slots?limit=ten"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			var resp struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decoding error response: %v", err)
			}
			if resp.Code != apperrors.CodeInvalidInput {
				t.Errorf("code = %q, want %q", resp.Code, apperrors.CodeInvalidInput)
			}
		})
	}
}

func TestGetSlotsSealsReferences(t *testing.T) {
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	entry := &model.LedgerEntry{
		Facility:      "Badminton Synthetic Court 1",
		SlotStart:     start,
		SlotEnd:       start.Add(time.Hour),
		Status:        model.StatusAvailable,
		SourceOfTruth: model.SourceBoth,
		Version:       1,
	}
	svc := &mockLedgerService{
		getSlotsFunc: func(ctx context.Context, q service.SlotQuery) ([]*model.LedgerEntry, int64, error) {
			return []*model.LedgerEntry{entry}, 1, nil
		},
	}
	s, err := sealer.New("")
	if err != nil {
		t.Fatalf("building sealer: %v", err)
	}
	router := testSlotRouter(t, svc, s)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data []struct {
			Facility string `json:"facility"`
			SlotRef  string `json:"slot_ref"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0].SlotRef == "" {
		t.Fatalf("expected one slot with a sealed reference, got %+v", envelope.Data)
	}

	facility, gotStart, gotEnd, err := s.OpenSlotRef(envelope.Data[0].SlotRef)
	if err != nil {
		t.Fatalf("opening sealed reference: %v", err)
	}
	if facility != entry.Facility || !gotStart.Equal(entry.SlotStart) || !gotEnd.Equal(entry.SlotEnd) {
		t.Errorf("reference opens to %s [%s, %s), want the listed slot", facility, gotStart, gotEnd)
	}
}

func TestGetSlotsServiceErrorNeverLeaksCause(t *testing.T) {
	svc := &mockLedgerService{
		getSlotsFunc: func(ctx context.Context, q service.SlotQuery) ([]*model.LedgerEntry, int64, error) {
			return nil, 0, apperrors.Internal("Failed to retrieve slots", errors.New("connection reset by mongod"))
		},
	}
	router := testSlotRouter(t, svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if resp.Code != apperrors.CodeInternal {
		t.Errorf("code = %q, want %q", resp.Code, apperrors.CodeInternal)
	}
	if strings.Contains(rec.Body.String(), "mongod") {
		t.Errorf("driver error leaked into the response: %s", rec.Body.String())
	}
}
