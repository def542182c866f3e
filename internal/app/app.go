// Package app assembles the pipeline from configuration. The HTTP server and
// the CLI share it.
package app

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/config"
	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/features"
	"github.com/obiente/translate/subtitler/internal/punctuate"
	"github.com/obiente/translate/subtitler/internal/storage"
	"github.com/obiente/translate/subtitler/internal/stt"
	"github.com/obiente/translate/subtitler/internal/transcript"
	"github.com/obiente/translate/subtitler/internal/translation"
)

type App struct {
	Config config.Config
	Engine *transcript.Engine
	Store  storage.Store
	// Translator is nil when translation is disabled.
	Translator *translation.Client
}

// New builds an App. The recognizer itself loads on the first job.
func New(cfg config.Config) (*App, error) {
	return NewWithRecognizer(cfg, func() (stt.Recognizer, error) { return stt.New(cfg.STTConfig()) })
}

// NewWithRecognizer is New with a custom recognizer factory.
func NewWithRecognizer(cfg config.Config, newRec func() (stt.Recognizer, error)) (*App, error) {
	store, err := storage.New(cfg.StorageConfig())
	if err != nil {
		return nil, err
	}

	opts := transcript.Options{
		VAD:      cfg.VADConfig(),
		Features: features.Config{Workers: cfg.Features.Workers},
		Store:    store,
	}
	if cfg.Features.FiltersPath != "" {
		if opts.Filters, err = loadFilters(cfg.Features.FiltersPath); err != nil {
			store.Close()
			return nil, err
		}
	}
	if opts.Diarizer, err = diarize.New(cfg.Diarize.Backend, cfg.GapConfig()); err != nil {
		store.Close()
		return nil, err
	}
	if cfg.Punctuate {
		opts.Punctuator = punctuate.Rules{}
	}

	engine, err := transcript.New(newRec, opts)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{Config: cfg, Engine: engine, Store: store}
	if cfg.Translation.Enabled && cfg.Translation.BaseURL != "" {
		a.Translator = translation.New(cfg.Translation.BaseURL, cfg.Translation.TimeoutSec)
	}
	log.Info().
		Str("stt", cfg.STT.Backend).
		Str("vad", cfg.VAD.Backend).
		Str("storage", cfg.Storage.Backend).
		Str("diarizer", cfg.Diarize.Backend).
		Bool("punctuate", cfg.Punctuate).
		Bool("translation", a.Translator != nil).
		Msg("app: pipeline ready")
	return a, nil
}

func loadFilters(path string) (*features.Filters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mel filters: %w", err)
	}
	defer f.Close()
	return features.LoadFilters(f)
}

func (a *App) Close() error {
	engErr := a.Engine.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	return engErr
}
