package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	apperrors "courtsync/pkg/errors"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

// Mock service for testing
type mockBookingService struct {
	bookFunc func(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error)
	listFunc func(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, int64, error)
}

func (m *mockBookingService) Book(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error) {
	if m.bookFunc != nil {
		return m.bookFunc(ctx, req)
	}
	return &model.BookingAttempt{ID: "attempt-1", Status: model.AttemptConfirmed}, nil
}

func (m *mockBookingService) GetAttempt(ctx context.Context, id string) (*model.BookingAttempt, error) {
	return nil, apperrors.NotFoundWithID("Booking attempt", id)
}

func (m *mockBookingService) ListAttempts(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, limit, offset)
	}
	return []*model.BookingAttempt{}, 0, nil
}

func testHandler(service *mockBookingService) *BookingHandler {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewBookingHandler(service, log)
}

func testRouter(h *BookingHandler) *httprouter.Router {
	router := httprouter.New()
	h.RegisterRoutes(router)
	return router
}

func TestBookReturnsCreated(t *testing.T) {
	var received *model.BookingRequest
	service := &mockBookingService{
		bookFunc: func(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error) {
			received = req
			return &model.BookingAttempt{
				ID:          "attempt-1",
				Facility:    req.Facility,
				Status:      model.AttemptConfirmed,
				ExternalRef: "PB-9",
			}, nil
		},
	}
	router := testRouter(testHandler(service))

	body := `{
		"facility": "Badminton Synthetic Court 1",
		"slot_start": "2026-01-10T01:30:00Z",
		"slot_end": "2026-01-10T02:30:00Z",
		"customer_name": "Asha Rao",
		"customer_phone": "+919876543210"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if received == nil || received.CustomerName != "Asha Rao" {
		t.Fatalf("service got the wrong request: %+v", received)
	}
	if !received.SlotStart.Equal(time.Date(2026, 1, 10, 1, 30, 0, 0, time.UTC)) {
		t.Errorf("slot_start did not parse: %s", received.SlotStart)
	}

	var envelope struct {
		Data model.BookingAttempt `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.Data.ExternalRef != "PB-9" {
		t.Errorf("expected the attempt in the envelope, got %+v", envelope.Data)
	}
}

func TestBookRejectsMalformedBody(t *testing.T) {
	router := testRouter(testHandler(&mockBookingService{}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBookPropagatesServiceErrors(t *testing.T) {
	service := &mockBookingService{
		bookFunc: func(ctx context.Context, req *model.BookingRequest) (*model.BookingAttempt, error) {
			return nil, apperrors.Conflict("Slot is BOOKED, not AVAILABLE")
		},
	}
	router := testRouter(testHandler(service))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"slot_ref":"x","customer_name":"Asha Rao","customer_phone":"+919876543210"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var errResp struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Code != apperrors.CodeConflict {
		t.Errorf("expected CONFLICT code, got %s", errResp.Code)
	}
}

func TestListAttemptsPaginates(t *testing.T) {
	service := &mockBookingService{
		listFunc: func(ctx context.Context, limit int, offset int64) ([]*model.BookingAttempt, int64, error) {
			if limit != 5 || offset != 10 {
				t.Errorf("expected limit 5 offset 10, got %d/%d", limit, offset)
			}
			return []*model.BookingAttempt{{ID: "a1"}}, 21, nil
		},
	}
	router := testRouter(testHandler(service))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		TotalCount int64 `json:"total_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if envelope.TotalCount != 21 {
		t.Errorf("expected total 21, got %d", envelope.TotalCount)
	}
}

func TestGetAttemptNotFound(t *testing.T) {
	router := testRouter(testHandler(&mockBookingService{}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/missing-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
