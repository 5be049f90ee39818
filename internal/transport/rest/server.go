package rest

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roomplay/tictactoe-room-backend/internal/repository"
)

// Start - starts the HTTP server serving the health probe and the room
// snapshot read model.
func Start(logger *slog.Logger, port string, roomRepo repository.RoomRepository) error {
	handler := newHandler(logger, roomRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", handler.ping)
	mux.HandleFunc("GET /rooms/{id}", handler.roomByID)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
