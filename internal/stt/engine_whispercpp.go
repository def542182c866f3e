//go:build whisper_cpp

package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperpkg "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"
)

// whisperCPP runs whisper.cpp on the segment samples; whisper.cpp computes
// its own mel spectrogram internally.
type whisperCPP struct {
	model    whisperpkg.Model
	threads  uint
	language string
}

func newWhisper(cfg Config) (Recognizer, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}
	lang := cfg.Language
	if lang == "" {
		lang = "auto"
	}
	m, err := whisperpkg.New(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	log.Info().Str("model", cfg.ModelPath).Int("threads", threads).Str("language", lang).Msg("whisper: model loaded successfully")
	return &whisperCPP{model: m, threads: uint(threads), language: lang}, nil
}

func (w *whisperCPP) Name() string { return "whisper" }

func (w *whisperCPP) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}

func (w *whisperCPP) Recognize(ctx context.Context, in Input) (string, error) {
	if len(in.Samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}
	wctx.SetThreads(w.threads)
	if err := wctx.SetLanguage(w.language); err != nil {
		log.Warn().Err(err).Str("language", w.language).Msg("whisper: language not supported by model")
	}
	wctx.SetSplitOnWord(true)
	wctx.SetMaxSegmentLength(0)
	wctx.SetMaxTokensPerSegment(0)

	if err := wctx.Process(in.Samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("read segment: %w", err)
		}
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, " "))

	log.Debug().
		Str("text", text).
		Str("lang", wctx.DetectedLanguage()).
		Int("samples", len(in.Samples)).
		Msg("whisper: segment transcribed")
	return text, nil
}
