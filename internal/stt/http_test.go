package stt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPRecognizerPostsWAV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("auth = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if r.FormValue("model") != "whisper-1" || r.FormValue("language") != "de" {
			t.Errorf("fields model=%q language=%q", r.FormValue("model"), r.FormValue("language"))
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Error(err)
			return
		}
		magic := make([]byte, 4)
		_, _ = f.Read(magic)
		if string(magic) != "RIFF" {
			t.Errorf("upload is not a wav file")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "  hallo welt "})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Backend = "http"
	cfg.HTTPURL = srv.URL
	cfg.APIKey = "k"
	cfg.Language = "de"
	r, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	text, err := r.Recognize(context.Background(), Input{Samples: make([]float32, 1600)})
	if err != nil {
		t.Fatal(err)
	}
	if text != "hallo welt" {
		t.Errorf("text = %q", text)
	}
}

func TestHTTPRecognizerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	r, err := NewHTTP(Config{HTTPURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Recognize(context.Background(), Input{Samples: make([]float32, 10)})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}

func TestUnknownBackend(t *testing.T) {
	if _, err := New(Config{Backend: "vosk"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestWhisperWithoutTagUnavailable(t *testing.T) {
	_, err := New(Config{Backend: "whisper", ModelPath: "missing.bin"})
	if err == nil {
		t.Fatal("expected error")
	}
	// with the whisper_cpp tag the error comes from loading the missing model instead
	if !errors.Is(err, ErrUnavailable) && !strings.Contains(err.Error(), "load model") {
		t.Errorf("err = %v", err)
	}
}
