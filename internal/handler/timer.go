package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mclemens/timekeep/internal/auth"
	"github.com/mclemens/timekeep/internal/model"
	"github.com/mclemens/timekeep/internal/store"
)

// Notifier receives mutation events after a timer changes. The push
// dispatcher implements it; tests substitute a recorder.
type Notifier interface {
	BroadcastAll(userID string)
}

type TimerHandler struct {
	timerStore *store.TimerStore
	notifier   Notifier
	logger     *slog.Logger
}

func NewTimerHandler(ts *store.TimerStore, notifier Notifier, logger *slog.Logger) *TimerHandler {
	return &TimerHandler{timerStore: ts, notifier: notifier, logger: logger}
}

// notify pushes fresh state to the user's devices without holding up the
// HTTP response.
func (h *TimerHandler) notify(userID string) {
	if h.notifier != nil {
		go h.notifier.BroadcastAll(userID)
	}
}

type startTimerRequest struct {
	Description string `json:"description"`
}

// Create starts a new timer for the authenticated user.
func (h *TimerHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req startTimerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	timer, err := h.timerStore.Start(userID, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			writeError(w, http.StatusBadRequest, "description is required")
			return
		}
		h.logger.Error("start timer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start timer")
		return
	}

	h.logger.Info("timer started", "user_id", userID, "timer_id", timer.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": timer.ID})

	h.notify(userID)
}

// List returns the user's timers, optionally filtered by the isActive query
// parameter ("true" or "false"; anything else means no filter).
func (h *TimerHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	filter := store.FilterAny
	switch r.URL.Query().Get("isActive") {
	case "true":
		filter = store.FilterActiveOnly
	case "false":
		filter = store.FilterInactiveOnly
	}

	timers, err := h.timerStore.List(userID, filter)
	if err != nil {
		h.logger.Error("list timers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list timers")
		return
	}
	if timers == nil {
		timers = []model.Timer{}
	}
	writeJSON(w, http.StatusOK, timers)
}

// Stop ends the timer named in the path. Stopping a timer that is missing,
// already stopped, or owned by someone else is one and the same 404.
func (h *TimerHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	timerID := r.PathValue("id")

	timer, err := h.timerStore.Stop(userID, timerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "active timer not found")
			return
		}
		h.logger.Error("stop timer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stop timer")
		return
	}

	h.logger.Info("timer stopped", "user_id", userID, "timer_id", timer.ID, "duration_ms", *timer.Duration)
	writeJSON(w, http.StatusOK, timer)

	h.notify(userID)
}
