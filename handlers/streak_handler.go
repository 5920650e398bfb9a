package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"strideSyncAPI/internal/stats"
	"strideSyncAPI/internal/types/activity"
	"strideSyncAPI/services"
	"strideSyncAPI/utils"
)

type StreakHandler struct {
	engine      *services.StreakService
	store       *services.LocalStore
	shieldStore *services.ShieldStoreService
}

func NewStreakHandler(engine *services.StreakService, store *services.LocalStore, shieldStore *services.ShieldStoreService) *StreakHandler {
	return &StreakHandler{engine: engine, store: store, shieldStore: shieldStore}
}

// GetStreak returns the current streak aggregate.
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	st, err := h.store.LoadStreak(ctx)
	if err != nil {
		log.Printf("Streak: failed to load streak: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load streak")
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

type recordStepsRequest struct {
	Date  string `json:"date"`
	Steps int    `json:"steps"`
}

// RecordSteps applies a step total for a day. The date defaults to today.
func (h *StreakHandler) RecordSteps(w http.ResponseWriter, r *http.Request) {
	var req recordStepsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Date == "" {
		req.Date = utils.DayKey(time.Now())
	}
	if _, err := utils.ParseDayKey(req.Date); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}
	if req.Steps < 0 {
		respondWithError(w, http.StatusBadRequest, "Steps must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.engine.RecordSteps(ctx, req.Date, req.Steps); err != nil {
		log.Printf("Streak: failed to record steps: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to record steps")
		return
	}

	fact, err := h.store.LoadDailyFact(ctx, req.Date)
	if err != nil {
		log.Printf("Streak: failed to reload daily fact: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load daily fact")
		return
	}
	respondWithJSON(w, http.StatusOK, fact)
}

type logActivityRequest struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Steps          int       `json:"steps"`
	DistanceMeters float64   `json:"distance_meters"`
}

// LogActivity stores an immutable tracked activity and links it to its day.
func (h *StreakHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	var req logActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StartTime.IsZero() {
		respondWithError(w, http.StatusBadRequest, "start_time is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	a := &activity.Activity{
		ID:             req.ID,
		Kind:           req.Kind,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Steps:          req.Steps,
		DistanceMeters: req.DistanceMeters,
		CreatedAt:      time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.engine.LogActivity(ctx, a); err != nil {
		log.Printf("Streak: failed to log activity: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to log activity")
		return
	}
	respondWithJSON(w, http.StatusCreated, a)
}

type repairRequest struct {
	Date string `json:"date"`
}

// RepairDate retroactively covers a missed day with a shield.
func (h *StreakHandler) RepairDate(w http.ResponseWriter, r *http.Request) {
	var req repairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := utils.ParseDayKey(req.Date); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	err := h.engine.RepairDate(ctx, req.Date)
	switch {
	case errors.Is(err, services.ErrRepairOutOfWindow):
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, services.ErrDayAlreadyCounts):
		respondWithError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, services.ErrNoShieldsAvailable):
		respondWithError(w, http.StatusPaymentRequired, err.Error())
		return
	case err != nil:
		log.Printf("Streak: failed to repair date: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to repair date")
		return
	}

	st, err := h.store.LoadStreak(ctx)
	if err != nil {
		log.Printf("Streak: failed to reload streak: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load streak")
		return
	}
	respondWithJSON(w, http.StatusOK, st)
}

// CheckMissedDays covers gaps since the last goal day with shields, breaking
// the streak if they run out.
func (h *StreakHandler) CheckMissedDays(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	deployed, broken, err := h.engine.CheckAndDeployForMissedDays(ctx)
	if err != nil {
		log.Printf("Streak: missed day check failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Missed day check failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"shields_deployed": deployed,
		"streak_broken":    broken,
	})
}

// GetShield returns the shield aggregate.
func (h *StreakHandler) GetShield(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sh, err := h.store.LoadShield(ctx)
	if err != nil {
		log.Printf("Shield: failed to load shield: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load shield")
		return
	}
	respondWithJSON(w, http.StatusOK, sh)
}

// ApplyRefill runs the monthly shield refill if a month boundary has passed.
func (h *StreakHandler) ApplyRefill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.engine.ApplyMonthlyRefill(ctx); err != nil {
		log.Printf("Shield: refill failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Refill failed")
		return
	}

	sh, err := h.store.LoadShield(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load shield")
		return
	}
	respondWithJSON(w, http.StatusOK, sh)
}

type purchaseRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PurchaseShields credits a verified shield purchase.
func (h *StreakHandler) PurchaseShields(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity < 1 {
		respondWithError(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	granted, err := h.shieldStore.GrantPurchase(ctx, req.ProductID, req.Quantity)
	if err != nil {
		log.Printf("Shield: purchase failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Purchase failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"granted": granted})
}

// ListPurchases returns the purchase history, newest first.
func (h *StreakHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	purchases, err := h.shieldStore.ListPurchases(ctx)
	if err != nil {
		log.Printf("Shield: failed to list purchases: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list purchases")
		return
	}
	if purchases == nil {
		purchases = []*services.ShieldPurchase{}
	}
	respondWithJSON(w, http.StatusOK, purchases)
}

// GetCalendar returns the full daily fact log, oldest first.
func (h *StreakHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	facts, err := h.store.LoadAllDailyFacts(ctx)
	if err != nil {
		log.Printf("Streak: failed to load calendar: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load calendar")
		return
	}
	respondWithJSON(w, http.StatusOK, facts)
}

// GetDailyFact returns a single day's fact, or 404 if none exists.
func (h *StreakHandler) GetDailyFact(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := utils.ParseDayKey(date); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	fact, err := h.store.LoadDailyFact(ctx, date)
	if err != nil {
		log.Printf("Streak: failed to load daily fact: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load daily fact")
		return
	}
	if fact == nil {
		respondWithError(w, http.StatusNotFound, "No fact recorded for this date")
		return
	}
	respondWithJSON(w, http.StatusOK, fact)
}

// GetStats returns aggregate step history derived from the fact log.
func (h *StreakHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	facts, err := h.store.LoadAllDailyFacts(ctx)
	if err != nil {
		log.Printf("Stats: failed to load daily facts: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	st, err := h.store.LoadStreak(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	sh, err := h.store.LoadShield(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	p, err := h.store.LoadProfile(ctx)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats.Compute(facts, st, sh, p, utils.DayKey(time.Now())))
}

type registerDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
}

// RegisterDevice stores a push token for notification delivery.
func (h *StreakHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" {
		respondWithError(w, http.StatusBadRequest, "Token is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.RegisterDeviceToken(ctx, req.Token, req.Platform); err != nil {
		log.Printf("Devices: failed to register token: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to register device")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
