// Package stt defines the speech-to-text capability and its backends.
// The whisper.cpp backend needs the whisper_cpp build tag; without it the
// package builds with a stub that reports the backend as unavailable.
package stt

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/obiente/translate/subtitler/internal/features"
)

// ErrUnavailable is returned for a backend this binary was built without.
var ErrUnavailable = errors.New("stt backend unavailable")

// Input is one speech segment: 16 kHz samples and their feature matrix.
// Backends use whichever representation their runtime consumes.
type Input struct {
	Samples  []float32
	Features features.Matrix
}

// Recognizer turns one segment into text. Implementations are not required
// to be safe for concurrent use; callers serialize access.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, in Input) (string, error)
	Close() error
}

type Config struct {
	// Backend is "whisper" or "http".
	Backend   string
	ModelPath string
	Threads   int
	// Language is a language code or "auto".
	Language string

	HTTPURL   string
	HTTPModel string
	APIKey    string
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backend:   "whisper",
		ModelPath: "./models/ggml-base.bin",
		Threads:   runtime.NumCPU(),
		Language:  "auto",
		HTTPURL:   "https://api.openai.com/v1/audio/transcriptions",
		HTTPModel: "whisper-1",
		Timeout:   60 * time.Second,
	}
}

// New returns the backend selected by cfg.Backend.
func New(cfg Config) (Recognizer, error) {
	switch cfg.Backend {
	case "whisper", "":
		return newWhisper(cfg)
	case "http":
		return NewHTTP(cfg)
	default:
		return nil, fmt.Errorf("stt: unknown backend %q", cfg.Backend)
	}
}
