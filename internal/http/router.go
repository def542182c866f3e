package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/ws"
)

func NewRouter(a *app.App) http.Handler {
	h := &handlers{app: a}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": a.Engine.State().String()})
	})
	mux.HandleFunc("POST /v1/transcribe", h.transcribe)
	mux.HandleFunc("POST /v1/translate", h.translate)
	mux.HandleFunc("POST /v1/detect", h.detect)
	mux.HandleFunc("GET /v1/subtitles/{id}", h.subtitle)
	// Streaming transcription WebSocket
	mux.HandleFunc("/ws/transcribe", ws.NewServer(a).Handle)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NewServer wraps the router in an http.Server bound to addr.
func NewServer(addr string, a *app.App) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(a),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 10 * time.Minute,
	}
}
