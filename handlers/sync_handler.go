package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"strideSyncAPI/services"
)

type SyncHandler struct {
	sync *services.SyncService
}

func NewSyncHandler(sync *services.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// GetStatus returns the coordinator's current state snapshot.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.sync.Status())
}

// ForceSync runs a push, settles, then pulls. Runs in the background so the
// client gets an immediate acknowledgement.
func (h *SyncHandler) ForceSync(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := h.sync.ForceSync(ctx); err != nil {
			log.Printf("Sync: forced sync failed: %v", err)
		}
	}()
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

// Push pushes all local records to the remote zone.
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := h.sync.PushAll(ctx); err != nil {
		log.Printf("Sync: manual push failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Push failed")
		return
	}
	respondWithJSON(w, http.StatusOK, h.sync.Status())
}

// Pull fetches and merges every remote record into the local store.
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := h.sync.PullAll(ctx); err != nil {
		log.Printf("Sync: manual pull failed: %v", err)
		respondWithError(w, http.StatusBadGateway, "Pull failed")
		return
	}
	respondWithJSON(w, http.StatusOK, h.sync.Status())
}
