package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/errdefs"
	"github.com/obiente/translate/subtitler/internal/storage"
	"github.com/obiente/translate/subtitler/internal/subtitle"
	"github.com/obiente/translate/subtitler/internal/transcript"
	"github.com/obiente/translate/subtitler/internal/translation"
)

const maxUploadBytes = 512 << 20

type handlers struct {
	app *app.App
}

// statusOf maps pipeline errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errdefs.ErrFormat):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errdefs.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("http: request failed")
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// containerOf picks the decoder from the format query parameter or the
// request content type.
func containerOf(r *http.Request) string {
	if f := r.URL.Query().Get("format"); f != "" {
		return f
	}
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return "wav"
	case "audio/flac", "audio/x-flac":
		return "flac"
	default:
		return "pcm"
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

type entryJSON struct {
	Index   int     `json:"index"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker int     `json:"speaker,omitempty"`
}

func entriesJSON(doc subtitle.Document) []entryJSON {
	out := make([]entryJSON, len(doc.Entries))
	for i, e := range doc.Entries {
		out[i] = entryJSON{Index: e.Index, Start: e.Start, End: e.End, Text: e.Text, Speaker: e.Speaker}
	}
	return out
}

// transcribe accepts a WAV, FLAC or raw PCM16LE body. Raw PCM takes its
// layout from the rate and channels query parameters.
func (h *handlers) transcribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, r, errdefs.Formatf("transcribe", "read body: %v", err))
		return
	}
	clip, err := audio.Decode(bytes.NewReader(body), containerOf(r), queryInt(r, "rate", audio.TargetSampleRate), queryInt(r, "channels", 1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	persist := r.URL.Query().Get("persist") != "false"
	res, err := h.app.Engine.Transcribe(r.Context(), transcript.Job{
		ID:         r.URL.Query().Get("id"),
		Audio:      clip.Reader(),
		SampleRate: clip.SampleRate,
		Persist:    persist,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       res.ID,
		"srt":      res.Text,
		"entries":  entriesJSON(res.Document),
		"skipped":  res.Skipped,
		"segments": res.Segments,
		"persist":  persist,
	})
}

type translateRequest struct {
	// ID names a stored document; SRT carries one inline.
	ID     string `json:"id"`
	SRT    string `json:"srt"`
	Source string `json:"source"`
	Target string `json:"target"`
	// Persist stores the result as "<id>.<target>".
	Persist bool `json:"persist"`
}

func (h *handlers) load(r *http.Request, id, inline string) (string, error) {
	if inline != "" {
		return inline, nil
	}
	if id == "" {
		return "", errdefs.Formatf("request", "id or srt is required")
	}
	return storage.ReadText(r.Context(), h.app.Store, id)
}

func (h *handlers) translate(w http.ResponseWriter, r *http.Request) {
	if h.app.Translator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "translation disabled"})
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errdefs.Formatf("translate", "invalid json: %v", err))
		return
	}
	if req.Target == "" {
		writeError(w, r, errdefs.Formatf("translate", "target is required"))
		return
	}
	text, err := h.load(r, req.ID, req.SRT)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := translation.TranslateSubtitle(r.Context(), h.app.Translator, text, req.Source, req.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{"srt": out, "target": req.Target}
	if req.Persist && req.ID != "" {
		id := fmt.Sprintf("%s.%s", req.ID, req.Target)
		if err := h.app.Store.Write(r.Context(), id, out); err != nil {
			writeError(w, r, fmt.Errorf("%w: %w", errdefs.ErrPersist, err))
			return
		}
		resp["id"] = id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) detect(w http.ResponseWriter, r *http.Request) {
	if h.app.Translator == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "translation disabled"})
		return
	}
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errdefs.Formatf("detect", "invalid json: %v", err))
		return
	}
	text, err := h.load(r, req.ID, req.SRT)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lang, err := translation.DetectSubtitle(r.Context(), h.app.Translator, text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"language": lang})
}

func (h *handlers) subtitle(w http.ResponseWriter, r *http.Request) {
	text, err := storage.ReadText(r.Context(), h.app.Store, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-subrip; charset=utf-8")
	_, _ = io.WriteString(w, text)
}
