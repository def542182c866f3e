package transcript

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/subtitle"
)

// punctuate rewrites entry texts in place. Any failure keeps the raw text.
func (e *Engine) punctuate(ctx context.Context, doc subtitle.Document, logger zerolog.Logger) {
	if e.opts.Punctuator == nil || len(doc.Entries) == 0 {
		return
	}
	texts := make([]string, len(doc.Entries))
	for i, en := range doc.Entries {
		texts[i] = en.Text
	}
	out, err := e.opts.Punctuator.Punctuate(ctx, texts)
	if err != nil || len(out) != len(texts) {
		logger.Warn().Err(err).Int("want", len(texts)).Int("got", len(out)).Msg("transcript: punctuation skipped")
		return
	}
	for i := range doc.Entries {
		doc.Entries[i].Text = out[i]
	}
}

// diarize labels entries with speakers. Any failure leaves them unlabelled.
func (e *Engine) diarize(ctx context.Context, doc subtitle.Document, spans []diarize.Interval, recording []float32, logger zerolog.Logger) {
	if e.opts.Diarizer == nil || len(doc.Entries) == 0 {
		return
	}
	segs, err := e.opts.Diarizer.Process(ctx, recording)
	if err != nil {
		logger.Warn().Err(err).Str("diarizer", e.opts.Diarizer.Name()).Msg("transcript: diarization failed, entries left without speaker")
		return
	}
	diarize.AssignSpeakers(doc.Entries, spans, segs)
}
