package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"strideSyncAPI/internal/types/caloriegoal"
	"strideSyncAPI/internal/types/foodlog"
	"strideSyncAPI/services"
	"strideSyncAPI/utils"
)

type FoodLogHandler struct {
	store *services.LocalStore
}

func NewFoodLogHandler(store *services.LocalStore) *FoodLogHandler {
	return &FoodLogHandler{store: store}
}

// ListFoodLogs returns every food log entry, oldest first.
func (h *FoodLogHandler) ListFoodLogs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	logs, err := h.store.LoadAllFoodLogs(ctx)
	if err != nil {
		log.Printf("FoodLog: failed to load entries: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load food logs")
		return
	}
	if logs == nil {
		logs = []*foodlog.Entry{}
	}
	respondWithJSON(w, http.StatusOK, logs)
}

type foodLogRequest struct {
	ID       string  `json:"id"`
	Date     string  `json:"date"`
	MealType string  `json:"meal_type"`
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
}

// SaveFoodLog creates or updates one food log entry. Last write wins.
func (h *FoodLogHandler) SaveFoodLog(w http.ResponseWriter, r *http.Request) {
	var req foodLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := utils.ParseDayKey(req.Date); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	entry := &foodlog.Entry{
		ID:         req.ID,
		Date:       req.Date,
		MealType:   foodlog.MealType(req.MealType),
		Name:       req.Name,
		Calories:   req.Calories,
		ProteinG:   req.ProteinG,
		CarbsG:     req.CarbsG,
		FatG:       req.FatG,
		ModifiedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.SaveFoodLog(ctx, entry); err != nil {
		log.Printf("FoodLog: failed to save entry: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save food log")
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}

// GetCalorieGoal returns calorie goal settings, or 404 before first setup.
func (h *FoodLogHandler) GetCalorieGoal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cg, err := h.store.LoadCalorieGoal(ctx)
	if err != nil {
		log.Printf("FoodLog: failed to load calorie goal: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load calorie goal")
		return
	}
	if cg == nil {
		respondWithError(w, http.StatusNotFound, "Calorie goal not configured")
		return
	}
	respondWithJSON(w, http.StatusOK, cg)
}

type calorieGoalRequest struct {
	DailyCalorieTarget int `json:"daily_calorie_target"`
	ProteinPercent     int `json:"protein_percent"`
	CarbsPercent       int `json:"carbs_percent"`
	FatPercent         int `json:"fat_percent"`
}

// PutCalorieGoal replaces the calorie goal settings.
func (h *FoodLogHandler) PutCalorieGoal(w http.ResponseWriter, r *http.Request) {
	var req calorieGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DailyCalorieTarget < 0 {
		respondWithError(w, http.StatusBadRequest, "Calorie target must not be negative")
		return
	}

	cg := &caloriegoal.Settings{
		DailyCalorieTarget: req.DailyCalorieTarget,
		ProteinPercent:     req.ProteinPercent,
		CarbsPercent:       req.CarbsPercent,
		FatPercent:         req.FatPercent,
		ModifiedAt:         time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.SaveCalorieGoal(ctx, cg); err != nil {
		log.Printf("FoodLog: failed to save calorie goal: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save calorie goal")
		return
	}
	respondWithJSON(w, http.StatusOK, cg)
}

// GetSettings returns the app settings (defaults before first write).
func (h *FoodLogHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	as, err := h.store.LoadSettings(ctx)
	if err != nil {
		log.Printf("Settings: failed to load: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	respondWithJSON(w, http.StatusOK, as)
}

type settingsRequest struct {
	NotificationsEnabled bool `json:"notifications_enabled"`
	HapticsEnabled       bool `json:"haptics_enabled"`
}

// PutSettings updates the user's device preferences. The usage counters are
// maintained internally and not writable from outside.
func (h *FoodLogHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	as, err := h.store.LoadSettings(ctx)
	if err != nil {
		log.Printf("Settings: failed to load: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	as.NotificationsEnabled = req.NotificationsEnabled
	as.HapticsEnabled = req.HapticsEnabled
	as.Initialized = true
	as.ModifiedAt = time.Now()
	if as.UsagePeriodStart == "" {
		as.UsagePeriodStart = utils.DayKey(time.Now())
	}

	if err := h.store.SaveSettings(ctx, as); err != nil {
		log.Printf("Settings: failed to save: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	respondWithJSON(w, http.StatusOK, as)
}
