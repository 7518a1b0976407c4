package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"courtsync/internal/bookings/service"
	apperrors "courtsync/pkg/errors"
	httputil "courtsync/pkg/http"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Book", apperrors.InvalidInput("Invalid request body"))
		return
	}

	attempt, err := h.service.Book(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Book", err)
		return
	}

	if err := httputil.WriteCreated(w, attempt); err != nil {
		h.log.Error("failed to write created response", "handler", "Book", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetAttempt(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	attempt, err := h.service.GetAttempt(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetAttempt", err)
		return
	}

	if err := httputil.WriteSuccess(w, attempt); err != nil {
		h.log.Error("failed to write success response", "handler", "GetAttempt", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) ListAttempts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAttempts", err)
		return
	}

	attempts, total, err := h.service.ListAttempts(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "ListAttempts", err)
		return
	}

	if err := httputil.WritePaginated(w, attempts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAttempts", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Book)
	router.GET("/api/v1/bookings", h.ListAttempts)
	router.GET("/api/v1/bookings/:id", h.GetAttempt)
}
