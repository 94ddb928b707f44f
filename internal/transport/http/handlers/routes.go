package handlers

import (
	"net/http"
)

// Routes registers the event API on mux. Everything except /health goes
// through auth.
func Routes(mux *http.ServeMux, events *EventHandler, auth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Rooms
	mux.Handle("POST /api/v1/rooms/{roomID}/events", auth(http.HandlerFunc(events.Send)))
	mux.Handle("GET /api/v1/rooms/{roomID}/events", auth(http.HandlerFunc(events.List)))

	// Events
	mux.Handle("GET /api/v1/events/{eventID}", auth(http.HandlerFunc(events.Get)))
	mux.Handle("GET /api/v1/events/{eventID}/parent", auth(http.HandlerFunc(events.Parent)))
	mux.Handle("GET /api/v1/events/{eventID}/chain", auth(http.HandlerFunc(events.Chain)))
	mux.Handle("PATCH /api/v1/events/{eventID}", auth(http.HandlerFunc(events.Edit)))
	mux.Handle("DELETE /api/v1/events/{eventID}", auth(http.HandlerFunc(events.Redact)))
}
