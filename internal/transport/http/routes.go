package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"trivia-arena/internal/app"
)

// NewRouter mounts the health check, the websocket endpoint and room inspection.
func NewRouter(ws *WSHandler, registry *app.Registry) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.ServeWS)
	r.Get("/rooms/{roomID}", RoomSnapshot(registry))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// RoomSnapshot serves a read-only view of an active room.
func RoomSnapshot(registry *app.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := registry.Room(r.Context(), chi.URLParam(r, "roomID"))
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}
