package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"courtsync/internal/sync/service"
	apperrors "courtsync/pkg/errors"
	httputil "courtsync/pkg/http"
	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

type SyncHandler struct {
	scheduler *service.Scheduler
	log       *logger.Logger
}

func NewSyncHandler(scheduler *service.Scheduler, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		scheduler: scheduler,
		log:       log,
	}
}

// triggerRequest is the optional body of a manual trigger. Dates make the
// trigger a targeted refresh; force bypasses the refresh cooldown.
type triggerRequest struct {
	Dates []string `json:"dates,omitempty"`
	Force bool     `json:"force,omitempty"`
}

func (h *SyncHandler) TriggerCycle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, "TriggerCycle", apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	result, err := h.scheduler.TriggerCycle(model.TriggerManual, req.Dates, req.Force)
	if err != nil {
		h.writeError(w, "TriggerCycle", err)
		return
	}

	if !result.Started {
		if err := httputil.WriteSuccess(w, result); err != nil {
			h.log.Error("failed to write response", "handler", "TriggerCycle", "error", err)
		}
		return
	}
	if err := httputil.WriteAccepted(w, result); err != nil {
		h.log.Error("failed to write response", "handler", "TriggerCycle", "error", err)
	}
}

func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	status := h.scheduler.Status()
	if err := httputil.WriteSuccess(w, status); err != nil {
		h.log.Error("failed to write response", "handler", "GetStatus", "error", err)
	}
}

func (h *SyncHandler) SetLock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update model.LockUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, "SetLock", apperrors.InvalidInput("request body must be valid JSON"))
		return
	}

	lock, err := h.scheduler.SetLock(r.Context(), update)
	if err != nil {
		h.writeError(w, "SetLock", err)
		return
	}
	if err := httputil.WriteSuccess(w, lock); err != nil {
		h.log.Error("failed to write response", "handler", "SetLock", "error", err)
	}
}

func (h *SyncHandler) GetCycles(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetCycles", err)
		return
	}

	records, total, err := h.scheduler.Cycles(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetCycles", err)
		return
	}
	if err := httputil.WritePaginated(w, records, total, limit, offset); err != nil {
		h.log.Error("failed to write response", "handler", "GetCycles", "error", err)
	}
}

func (h *SyncHandler) writeError(w http.ResponseWriter, handlerName string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handlerName, "operation", "WriteError", "error", writeErr)
	}
}

func (h *SyncHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/sync/cycles", h.TriggerCycle)
	router.GET("/api/v1/sync/cycles", h.GetCycles)
	router.GET("/api/v1/sync/status", h.GetStatus)
	router.PUT("/api/v1/sync/lock", h.SetLock)
}
