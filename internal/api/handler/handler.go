// Package handler implements the admin and settings HTTP surface. End users
// never see this API; it is consumed by the platform's backend and by
// operators.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/table-talk25/tabletalk-notify/internal/api/respond"
	"github.com/table-talk25/tabletalk-notify/internal/pipeline"
	"github.com/table-talk25/tabletalk-notify/internal/scheduler"
	"github.com/table-talk25/tabletalk-notify/internal/store"
)

// SettingsStore is the record-store surface the handlers need.
type SettingsStore interface {
	Ping(ctx context.Context) error
	User(ctx context.Context, id string) (*store.User, error)
	UpdateGeoSettings(ctx context.Context, userID string, upd store.GeoSettingsUpdate) error
	SetPushPreference(ctx context.Context, userID, group, key string, enabled bool) error
}

// SchedulerJob is the scheduler surface the handlers need.
type SchedulerJob interface {
	TriggerManual(ctx context.Context, lookback time.Duration) (pipeline.Outcome, error)
	Reconfigure(cadence string) error
	Stop()
	Snapshot() scheduler.Stats
	HealthStatus() scheduler.Health
	ResetStats()
}

// Handler holds dependencies for all routes.
type Handler struct {
	store  SettingsStore
	job    SchedulerJob
	logger *slog.Logger
}

// New creates a handler with its dependencies.
func New(st SettingsStore, job SchedulerJob, logger *slog.Logger) *Handler {
	return &Handler{store: st, job: job, logger: logger}
}

// Root serves a minimal service descriptor.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"service": "tabletalk-notify",
		"status":  "ok",
	})
}

// HealthCheck reports process and store liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("store health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respond.WriteJSON(w, code, map[string]string{"status": status})
}

// SchedulerHealth reports the scheduler's liveness state and statistics.
func (h *Handler) SchedulerHealth(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"health": h.job.HealthStatus(),
		"stats":  h.job.Snapshot(),
	})
}

// --------------------------------------------------------------------------
// Admin: scheduler control
// --------------------------------------------------------------------------

type scanRequest struct {
	LookbackHours float64 `json:"lookbackHours"`
}

// ManualScan triggers one pipeline pass outside the schedule.
func (h *Handler) ManualScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.Body != nil {
		// An empty body means "use the configured lookback".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.LookbackHours < 0 {
		respond.WriteError(w, http.StatusBadRequest, respond.CodeValidation, "lookbackHours must be positive")
		return
	}

	lookback := time.Duration(req.LookbackHours * float64(time.Hour))
	outcome, err := h.job.TriggerManual(r.Context(), lookback)
	if err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			respond.WriteError(w, http.StatusConflict, respond.CodeAlreadyRunning, "a pass is already running")
			return
		}
		h.logger.Error("manual scan failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, respond.CodeInternal, "scan failed", err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, outcome)
}

type scheduleRequest struct {
	Cadence string `json:"cadence"`
}

// ReconfigureSchedule swaps the recurring cadence at runtime.
func (h *Handler) ReconfigureSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Cadence == "" {
		respond.WriteError(w, http.StatusBadRequest, respond.CodeValidation, "cadence is required")
		return
	}
	if err := h.job.Reconfigure(req.Cadence); err != nil {
		if errors.Is(err, scheduler.ErrInvalidCadence) {
			respond.WriteErrorDetail(w, http.StatusBadRequest, respond.CodeScheduling, "invalid cadence expression", err.Error())
			return
		}
		respond.WriteErrorDetail(w, http.StatusInternalServerError, respond.CodeInternal, "reconfigure failed", err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.job.Snapshot())
}

// StopSchedule cancels the recurring trigger. Idempotent.
func (h *Handler) StopSchedule(w http.ResponseWriter, r *http.Request) {
	h.job.Stop()
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ResetStats clears accumulated run statistics.
func (h *Handler) ResetStats(w http.ResponseWriter, r *http.Request) {
	h.job.ResetStats()
	respond.WriteJSON(w, http.StatusOK, h.job.Snapshot())
}

// --------------------------------------------------------------------------
// User settings
// --------------------------------------------------------------------------

// GetGeoSettings returns a user's geo-notification settings.
func (h *Handler) GetGeoSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	u, err := h.store.User(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u.Geo)
}

// UpdateGeoSettings applies a partial update to a user's geo settings.
func (h *Handler) UpdateGeoSettings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var upd store.GeoSettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respond.WriteError(w, http.StatusBadRequest, respond.CodeValidation, "malformed request body")
		return
	}
	if err := h.store.UpdateGeoSettings(r.Context(), userID, upd); err != nil {
		h.writeStoreError(w, err)
		return
	}
	u, err := h.store.User(r.Context(), userID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, u.Geo)
}

type preferenceRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetPushPreference flips one cell of the user's preference matrix.
func (h *Handler) SetPushPreference(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	group := chi.URLParam(r, "group")
	key := chi.URLParam(r, "key")

	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		respond.WriteError(w, http.StatusBadRequest, respond.CodeValidation, "enabled is required")
		return
	}
	if err := h.store.SetPushPreference(r.Context(), userID, group, key, *req.Enabled); err != nil {
		h.writeStoreError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"group":   group,
		"key":     key,
		"enabled": *req.Enabled,
	})
}

// writeStoreError maps store sentinel errors to stable API codes.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		respond.WriteErrorDetail(w, http.StatusBadRequest, respond.CodeValidation, "validation failed", err.Error())
	case errors.Is(err, store.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, respond.CodeNotFound, "record not found")
	default:
		h.logger.Error("store operation failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, respond.CodeInternal, "internal error")
	}
}
