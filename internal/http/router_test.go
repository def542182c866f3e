package http

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/obiente/translate/subtitler/internal/app"
	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/config"
	"github.com/obiente/translate/subtitler/internal/stt"
)

type constRecognizer struct{}

func (constRecognizer) Name() string { return "const" }
func (constRecognizer) Close() error { return nil }
func (constRecognizer) Recognize(context.Context, stt.Input) (string, error) {
	return "hello there", nil
}

func newTestRouter(t *testing.T, translateURL string) (http.Handler, *app.App) {
	t.Helper()
	cfg := config.Default()
	cfg.VAD.Backend = "energy"
	cfg.Storage.Dir = t.TempDir()
	cfg.Translation.BaseURL = translateURL
	cfg.Translation.Enabled = translateURL != ""
	a, err := app.NewWithRecognizer(cfg, func() (stt.Recognizer, error) { return constRecognizer{}, nil })
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return NewRouter(a), a
}

func toneWAV(t *testing.T) []byte {
	t.Helper()
	samples := make([]float32, 2*audio.TargetSampleRate)
	for i := 0; i < audio.TargetSampleRate; i++ {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/audio.TargetSampleRate))
	}
	b, err := audio.EncodeWAV(samples, audio.TargetSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}

func TestTranscribeThenFetch(t *testing.T) {
	h, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/v1/transcribe?id=meeting", bytes.NewReader(toneWAV(t)))
	req.Header.Set("Content-Type", "audio/wav")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("transcribe: %d %s", rec.Code, rec.Body)
	}
	var body struct {
		ID      string `json:"id"`
		SRT     string `json:"srt"`
		Entries []struct {
			Text string `json:"text"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.ID != "meeting" || len(body.Entries) != 1 || body.Entries[0].Text != "Hello there." {
		t.Fatalf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subtitles/meeting", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != body.SRT {
		t.Fatalf("fetch: %d %q", rec.Code, rec.Body)
	}
}

func TestTranscribeOddPCMIsBadRequest(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/transcribe?format=pcm", bytes.NewReader([]byte{1, 2, 3})))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}

func TestSubtitleNotFound(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/subtitles/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}

func TestTranslateStored(t *testing.T) {
	lt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		q, _ := req["q"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"translatedText": strings.ToUpper(q)})
	}))
	defer lt.Close()
	h, a := newTestRouter(t, lt.URL)

	doc := "1\n00:00:00,000 --> 00:00:01,000\nhi\n\n2\n00:00:01,000 --> 00:00:02,000\nbye\n"
	if err := a.Store.Write(context.Background(), "clip", doc); err != nil {
		t.Fatal(err)
	}
	payload := `{"id":"clip","target":"de","persist":true}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
	var body struct {
		SRT string `json:"srt"`
		ID  string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:00,000 --> 00:00:01,000\nHI\n\n2\n00:00:01,000 --> 00:00:02,000\nBYE\n"
	if body.SRT != want || body.ID != "clip.de" {
		t.Fatalf("body = %+v", body)
	}
}

func TestTranslateDisabled(t *testing.T) {
	h, _ := newTestRouter(t, "")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/translate", strings.NewReader(`{"srt":"x","target":"de"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("%d %s", rec.Code, rec.Body)
	}
}
