package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roomplay/tictactoe-room-backend/internal/repository"
)

type handler struct {
	logger   *slog.Logger
	roomRepo repository.RoomRepository
}

func newHandler(logger *slog.Logger, roomRepo repository.RoomRepository) *handler {
	return &handler{
		logger:   logger,
		roomRepo: roomRepo,
	}
}

func (that *handler) ping(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// roomByID serves the latest public snapshot of a live room.
func (that *handler) roomByID(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "roomByID")

	roomID := r.PathValue("id")
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	snapshot, err := that.roomRepo.GetByID(r.Context(), roomID)
	if errors.Is(err, repository.ErrRoomNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	if err != nil {
		log.Error("failed to get room snapshot", "roomID", roomID, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(snapshot); err != nil {
		log.Error("failed to encode room snapshot", "roomID", roomID, "error", err)
	}
}
