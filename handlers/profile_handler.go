package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"strideSyncAPI/internal/types/profile"
	"strideSyncAPI/middleware"
	"strideSyncAPI/services"
)

type ProfileHandler struct {
	store *services.LocalStore
}

func NewProfileHandler(store *services.LocalStore) *ProfileHandler {
	return &ProfileHandler{store: store}
}

// GetProfile returns the user profile, or 404 before onboarding.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.store.LoadProfile(ctx)
	if err != nil {
		log.Printf("Profile: failed to load: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	if p == nil {
		respondWithError(w, http.StatusNotFound, "Profile not created yet")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

type profileRequest struct {
	DisplayName         string `json:"display_name"`
	DailyStepTarget     int    `json:"daily_step_target"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	FirstGoalCelebrated bool   `json:"first_goal_celebrated"`
}

// PutProfile creates or updates the profile. Badges are engine-owned and the
// one-way flags never flip back to false once set.
func (h *ProfileHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DailyStepTarget < 0 {
		respondWithError(w, http.StatusBadRequest, "Step target must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.store.LoadProfile(ctx)
	if err != nil {
		log.Printf("Profile: failed to load: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	now := time.Now()
	if p == nil {
		p = &profile.Profile{CreatedAt: now}
		if clerkID, ok := middleware.GetClerkID(r.Context()); ok {
			p.ClerkID = clerkID
		}
	}
	p.DisplayName = req.DisplayName
	p.DailyStepTarget = req.DailyStepTarget
	p.OnboardingCompleted = p.OnboardingCompleted || req.OnboardingCompleted
	p.FirstGoalCelebrated = p.FirstGoalCelebrated || req.FirstGoalCelebrated
	p.UpdatedAt = now

	if err := h.store.SaveProfile(ctx, p); err != nil {
		log.Printf("Profile: failed to save: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save profile")
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}
