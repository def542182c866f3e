package diarize

import (
	"context"
	"time"

	"github.com/obiente/translate/subtitler/internal/vad"
)

type GapConfig struct {
	// Gap is the silence length that switches to the next speaker.
	Gap       time.Duration
	Speakers  int
	Threshold float64
}

func DefaultGapConfig() GapConfig {
	return GapConfig{Gap: 1500 * time.Millisecond, Speakers: 2, Threshold: 0.01}
}

// Gap is a heuristic diarizer for two-party recordings: it finds speech
// regions by energy and rotates the speaker label whenever the pause between
// regions is longer than Gap.
type Gap struct {
	cfg GapConfig
}

func NewGap(cfg GapConfig) *Gap {
	if cfg.Speakers < 1 {
		cfg.Speakers = 2
	}
	if cfg.Gap <= 0 {
		cfg.Gap = DefaultGapConfig().Gap
	}
	return &Gap{cfg: cfg}
}

func (g *Gap) Name() string { return "gap" }

func (g *Gap) Process(ctx context.Context, samples []float32) ([]SpeakerSegment, error) {
	seg, err := vad.NewWithClassifier(vad.Config{
		FrameMs:    30,
		MinSpeech:  200 * time.Millisecond,
		MinSilence: 300 * time.Millisecond,
	}, vad.EnergyClassifier{Threshold: g.cfg.Threshold})
	if err != nil {
		return nil, err
	}

	const chunk = 16000
	for off := 0; off < len(samples); off += chunk {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := off + chunk
		if end > len(samples) {
			end = len(samples)
		}
		seg.AcceptWaveform(samples[off:end])
	}
	seg.Flush()

	var (
		out     []SpeakerSegment
		speaker = 1
		lastEnd float64
	)
	for seg.HasSegment() {
		s := seg.PopSegment()
		if len(out) > 0 && s.Start-lastEnd > g.cfg.Gap.Seconds() {
			speaker = speaker%g.cfg.Speakers + 1
		}
		out = append(out, SpeakerSegment{Start: s.Start, End: s.End, Speaker: speaker})
		lastEnd = s.End
	}
	return out, nil
}
