// Package diarize attributes transcript entries to speakers.
package diarize

import (
	"context"
	"fmt"
	"sort"

	"github.com/obiente/translate/subtitler/internal/subtitle"
)

// SpeakerSegment says Speaker (1-based) talks during [Start, End] seconds.
type SpeakerSegment struct {
	Start   float64
	End     float64
	Speaker int
}

// Diarizer labels a whole 16 kHz recording.
type Diarizer interface {
	Name() string
	Process(ctx context.Context, samples []float32) ([]SpeakerSegment, error)
}

// Interval is an entry's position in the source audio.
type Interval struct {
	Start float64
	End   float64
}

// New returns the diarizer named by backend; "" and "none" return nil.
func New(backend string, cfg GapConfig) (Diarizer, error) {
	switch backend {
	case "", "none":
		return nil, nil
	case "gap":
		return NewGap(cfg), nil
	default:
		return nil, fmt.Errorf("diarize: unknown backend %q", backend)
	}
}

// AssignSpeakers sets entries[i].Speaker from the diarization segment with
// the largest overlap with spans[i]; ties go to the segment that starts
// first. Entries with no overlapping segment keep Speaker 0.
func AssignSpeakers(entries []subtitle.Entry, spans []Interval, segs []SpeakerSegment) {
	ordered := append([]SpeakerSegment(nil), segs...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	for i := range entries {
		if i >= len(spans) {
			break
		}
		best, bestOverlap := 0, 0.0
		for _, s := range ordered {
			o := overlap(spans[i], s)
			if o > bestOverlap {
				best, bestOverlap = s.Speaker, o
			}
		}
		entries[i].Speaker = best
	}
}

func overlap(iv Interval, s SpeakerSegment) float64 {
	lo, hi := iv.Start, iv.End
	if s.Start > lo {
		lo = s.Start
	}
	if s.End < hi {
		hi = s.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
