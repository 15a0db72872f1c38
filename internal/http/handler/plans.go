package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"planahead/internal/auth"
	"planahead/internal/place"
	"planahead/internal/plan"
)

type PlanService interface {
	CreatePlan(ctx context.Context, userID uint64, c place.Candidate) (uint64, error)
	ListPlans(ctx context.Context, userID uint64, h plan.Horizon) ([]plan.Summary, error)
	GetPlan(ctx context.Context, id, userID uint64) (*plan.Detail, error)
	UpdatePlan(ctx context.Context, planID uint64, in plan.UpdateInput) error
}

type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, userID, planID uint64, runAt time.Time) error
	CancelReminders(ctx context.Context, userID, planID uint64) error
}

type PlanHandler struct {
	Svc PlanService
	// Reminders is optional; reminders are not queued when nil.
	Reminders ReminderScheduler
	Logger    *zap.Logger
	Now       func() time.Time
}

type createPlanReq struct {
	PlaceID   string   `json:"place_id"`
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createPlanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		http.Error(w, "latitude and longitude required", http.StatusBadRequest)
		return
	}
	c := place.Candidate{
		ExternalID: strings.TrimSpace(req.PlaceID),
		Name:       strings.TrimSpace(req.Name),
		Address:    strings.TrimSpace(req.Address),
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
	}
	if err := c.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.Svc.CreatePlan(r.Context(), uid, c)
	if err != nil {
		h.Logger.Error("create plan", zap.Uint64("user_id", uid), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	horizon, err := plan.ParseHorizon(r.URL.Query().Get("horizon"))
	if err != nil {
		http.Error(w, "invalid horizon (new|old)", http.StatusBadRequest)
		return
	}

	plans, err := h.Svc.ListPlans(r.Context(), uid, horizon)
	if err != nil {
		h.Logger.Error("list plans", zap.Uint64("user_id", uid), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := h.Svc.GetPlan(r.Context(), id, uid)
	if err != nil {
		h.Logger.Error("get plan", zap.Uint64("plan_id", id), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"plan": p})
}

type updatePlanReq struct {
	Date   string   `json:"date"` // RFC3339, required
	Tags   []string `json:"tags"`
	Detail *string  `json:"detail"`
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	id, ok := idParam(r)
	if !ok {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updatePlanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		http.Error(w, "date required", http.StatusBadRequest)
		return
	}
	date, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date (RFC3339)", http.StatusBadRequest)
		return
	}

	// UpdatePlan itself does not check ownership
	owned, err := h.Svc.GetPlan(r.Context(), id, uid)
	if err != nil {
		h.Logger.Error("get plan", zap.Uint64("plan_id", id), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if owned == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	err = h.Svc.UpdatePlan(r.Context(), id, plan.UpdateInput{
		Date:   date,
		Tags:   req.Tags,
		Detail: req.Detail,
	})
	if err != nil {
		if errors.Is(err, plan.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("update plan", zap.Uint64("plan_id", id), zap.Error(err))
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.syncReminder(r.Context(), uid, id, date)

	w.WriteHeader(http.StatusNoContent)
}

// syncReminder queues a reminder for a future date and drops any pending one
// otherwise. The plan update has already committed, so failures are only
// logged; the worker skips reminders whose plan date has moved.
func (h *PlanHandler) syncReminder(ctx context.Context, userID, planID uint64, date time.Time) {
	if h.Reminders == nil {
		return
	}
	if date.After(h.now()) {
		if err := h.Reminders.ScheduleReminder(ctx, userID, planID, date); err != nil {
			h.Logger.Error("schedule reminder", zap.Uint64("plan_id", planID), zap.Error(err))
		}
		return
	}
	if err := h.Reminders.CancelReminders(ctx, userID, planID); err != nil {
		h.Logger.Error("cancel reminders", zap.Uint64("plan_id", planID), zap.Error(err))
	}
}

func (h *PlanHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
