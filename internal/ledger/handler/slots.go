package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"courtsync/internal/ledger/service"
	apperrors "courtsync/pkg/errors"
	httputil "courtsync/pkg/http"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
	"courtsync/pkg/sealer"
	"courtsync/pkg/timeslot"
)

type SlotHandler struct {
	service  service.LedgerService
	calendar *timeslot.Calendar
	sealer   *sealer.Sealer
	log      *logger.Logger
}

func NewSlotHandler(service service.LedgerService, calendar *timeslot.Calendar, sealer *sealer.Sealer, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service:  service,
		calendar: calendar,
		sealer:   sealer,
		log:      log,
	}
}

// slotView is a ledger entry plus the opaque reference a booking request
// may use instead of raw slot coordinates.
type slotView struct {
	model.LedgerEntry
	SlotRef string `json:"slot_ref,omitempty"`
}

func (h *SlotHandler) GetSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q, err := h.parseQuery(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	entries, total, err := h.service.GetSlots(r.Context(), q)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetSlots", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	views := make([]slotView, 0, len(entries))
	for _, entry := range entries {
		view := slotView{LedgerEntry: *entry}
		if h.sealer != nil {
			ref, sealErr := h.sealer.SealSlotRef(entry.Facility, entry.SlotStart, entry.SlotEnd)
			if sealErr != nil {
				h.log.Warn("failed to seal slot reference", "facility", entry.Facility, "error", sealErr)
			} else {
				view.SlotRef = ref
			}
		}
		views = append(views, view)
	}

	if err := httputil.WritePaginated(w, views, total, q.Limit, q.Offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetSlots", "operation", "WritePaginated", "error", err)
	}
}

func (h *SlotHandler) parseQuery(r *http.Request) (service.SlotQuery, error) {
	query := r.URL.Query()

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		return service.SlotQuery{}, err
	}

	q := service.SlotQuery{
		Facility: strings.TrimSpace(query.Get("facility")),
		Limit:    limit,
		Offset:   offset,
	}

	if date := query.Get("date"); date != "" {
		from, to, err := h.calendar.DayBounds(date)
		if err != nil {
			return service.SlotQuery{}, apperrors.InvalidInput("invalid date, must be YYYY-MM-DD")
		}
		q.From, q.To = from, to
	} else {
		if fromStr := query.Get("from"); fromStr != "" {
			from, err := time.Parse(time.RFC3339, fromStr)
			if err != nil {
				return service.SlotQuery{}, apperrors.InvalidInput("invalid from, must be RFC3339")
			}
			q.From = from.UTC()
		}
		if toStr := query.Get("to"); toStr != "" {
			to, err := time.Parse(time.RFC3339, toStr)
			if err != nil {
				return service.SlotQuery{}, apperrors.InvalidInput("invalid to, must be RFC3339")
			}
			q.To = to.UTC()
		}
	}

	if statusStr := query.Get("status"); statusStr != "" {
		for _, raw := range strings.Split(statusStr, ",") {
			status := model.SlotStatus(strings.ToUpper(strings.TrimSpace(raw)))
			switch status {
			case model.StatusAvailable, model.StatusBooked, model.StatusCancelled, model.StatusConflict:
				q.Statuses = append(q.Statuses, status)
			default:
				return service.SlotQuery{}, apperrors.InvalidInput("invalid status filter: " + raw)
			}
		}
	}

	return q, nil
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.GetSlots)
}
