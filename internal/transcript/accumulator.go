package transcript

import (
	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/subtitle"
)

// accumulator collects the entries of one job. Times are in standard time:
// each entry is placed at the summed duration of every segment consumed
// before it, recognized or not.
type accumulator struct {
	entries  []subtitle.Entry
	spans    []diarize.Interval
	offset   float64
	skipped  int
	segments int
}

// add appends an entry for a segment of dur seconds found at [start, end]
// in the source audio. Empty text only advances the clock.
func (a *accumulator) add(text string, dur, start, end float64) (subtitle.Entry, bool) {
	defer a.advance(dur)
	if text == "" {
		return subtitle.Entry{}, false
	}
	e := subtitle.Entry{
		Index: len(a.entries) + 1,
		Start: a.offset,
		End:   a.offset + dur,
		Text:  text,
	}
	a.entries = append(a.entries, e)
	a.spans = append(a.spans, diarize.Interval{Start: start, End: end})
	return e, true
}

func (a *accumulator) skip(dur float64) {
	a.skipped++
	a.advance(dur)
}

func (a *accumulator) advance(dur float64) {
	a.segments++
	a.offset += dur
}

func (a *accumulator) document() subtitle.Document {
	return subtitle.Document{Entries: a.entries}
}
