// Package transcript runs transcription jobs: audio in, subtitle document out.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/errdefs"
	"github.com/obiente/translate/subtitler/internal/features"
	"github.com/obiente/translate/subtitler/internal/punctuate"
	"github.com/obiente/translate/subtitler/internal/resource"
	"github.com/obiente/translate/subtitler/internal/storage"
	"github.com/obiente/translate/subtitler/internal/stt"
	"github.com/obiente/translate/subtitler/internal/subtitle"
	"github.com/obiente/translate/subtitler/internal/vad"
)

// Options wires the optional stages. Zero values fall back to defaults or
// skip the stage.
type Options struct {
	// VAD defaults to vad.DefaultConfig when zero.
	VAD      vad.Config
	Features features.Config
	// Filters defaults to an 80 bin Slaney filterbank.
	Filters    *features.Filters
	Diarizer   diarize.Diarizer
	Punctuator punctuate.Punctuator
	Store      storage.Store
}

// Job is one transcription request. Audio carries 16-bit little-endian mono
// PCM at SampleRate.
type Job struct {
	ID         string
	Audio      io.Reader
	SampleRate int
	// Persist writes the document to the engine's store under ID.
	Persist bool
	// OnEntry, when set, sees every entry as soon as it is recognized.
	// Speaker labels are assigned later and are not set yet.
	OnEntry func(subtitle.Entry)
}

type Result struct {
	ID       string
	Document subtitle.Document
	Text     string
	Skipped  int
	Segments int
	Duration time.Duration
}

// Engine owns one recognizer and the per-stream VAD. Jobs run one at a time.
type Engine struct {
	opts      Options
	newRec    func() (stt.Recognizer, error)
	rec       stt.Recognizer
	life      *resource.Lifecycle
	segmenter *vad.Segmenter
	extractor *features.Extractor

	mu    sync.Mutex
	state State
}

// New builds an engine. The recognizer is created lazily by newRec on the
// first job or on Load.
func New(newRec func() (stt.Recognizer, error), opts Options) (*Engine, error) {
	if newRec == nil {
		return nil, fmt.Errorf("transcript: nil recognizer factory")
	}
	if opts.VAD == (vad.Config{}) {
		opts.VAD = vad.DefaultConfig()
	}
	seg, err := vad.New(opts.VAD)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	filters := opts.Filters
	if filters == nil {
		fftSize := opts.Features.FFTSize
		if fftSize <= 0 {
			fftSize = features.DefaultFFTSize
		}
		filters = features.NewSlaneyFilters(features.DefaultNMel, fftSize, audio.TargetSampleRate)
	}
	ext, err := features.NewExtractor(filters, opts.Features)
	if err != nil {
		return nil, fmt.Errorf("transcript: %w", err)
	}
	e := &Engine{opts: opts, newRec: newRec, segmenter: seg, extractor: ext}
	e.life = resource.New("recognizer", e.open, e.close)
	return e, nil
}

func (e *Engine) open() error {
	rec, err := e.newRec()
	if err != nil {
		return err
	}
	e.rec = rec
	log.Info().Str("backend", rec.Name()).Msg("transcript: recognizer loaded")
	return nil
}

func (e *Engine) close() error {
	if e.rec == nil {
		return nil
	}
	err := e.rec.Close()
	e.rec = nil
	return err
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Load initializes the recognizer ahead of the first job.
func (e *Engine) Load() error {
	if e.life.State() == resource.Ready {
		return nil
	}
	e.setState(Loading)
	if err := e.life.Initialize(); err != nil {
		e.setState(Idle)
		return fmt.Errorf("transcript: load recognizer: %w", errors.Join(errdefs.ErrNotInitialized, err))
	}
	e.setState(Ready)
	return nil
}

// Close releases the recognizer. Later jobs fail with ErrNotInitialized.
func (e *Engine) Close() error {
	err := e.life.Release()
	e.setState(Idle)
	return err
}

// Transcribe runs job to completion. A segment the recognizer fails on is
// logged and counted in Result.Skipped. On cancellation the segment in
// flight finishes and the context error is returned.
func (e *Engine) Transcribe(ctx context.Context, job Job) (Result, error) {
	if job.Audio == nil {
		return Result{}, fmt.Errorf("transcript: job has no audio")
	}
	if job.SampleRate <= 0 {
		return Result{}, errdefs.Formatf("transcript", "invalid sample rate %d", job.SampleRate)
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := e.Load(); err != nil {
		return Result{}, err
	}

	var res Result
	err := e.life.Do(func() error {
		defer e.setState(Idle)
		var err error
		res, err = e.run(ctx, job)
		return err
	})
	return res, err
}

func (e *Engine) run(ctx context.Context, job Job) (Result, error) {
	began := time.Now()
	e.setState(Processing)
	e.segmenter.Reset()
	defer e.segmenter.Reset()

	logger := log.With().Str("job", job.ID).Str("backend", e.rec.Name()).Logger()
	logger.Info().Int("sample_rate", job.SampleRate).Msg("transcript: job started")

	acc := &accumulator{}
	var recording []float32

	drain := func() error {
		for e.segmenter.HasSegment() {
			seg := e.segmenter.PopSegment()
			dur := seg.Duration()
			in := stt.Input{Samples: seg.Samples, Features: e.extractor.Extract(seg.Samples)}
			text, err := e.rec.Recognize(ctx, in)
			if err != nil {
				logger.Warn().Err(fmt.Errorf("%w: %w", errdefs.ErrSegmentInference, err)).
					Float64("start", seg.Start).Float64("end", seg.End).
					Msg("transcript: segment skipped")
				acc.skip(dur)
			} else if entry, ok := acc.add(strings.TrimSpace(text), dur, seg.Start, seg.End); ok {
				logger.Debug().Int("index", entry.Index).Float64("start", entry.Start).Str("text", entry.Text).Msg("transcript: entry")
				if job.OnEntry != nil {
					job.OnEntry(entry)
				}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	}

	buf := make([]byte, 2*job.SampleRate)
	var carry []byte
	rs := audio.NewResampler(job.SampleRate, audio.TargetSampleRate)
	feed := func(samples []float32) error {
		if e.opts.Diarizer != nil {
			recording = append(recording, samples...)
		}
		e.segmenter.AcceptWaveform(samples)
		return drain()
	}
	for {
		if err := ctx.Err(); err != nil {
			logger.Info().Msg("transcript: job cancelled")
			return Result{}, err
		}
		n, rerr := io.ReadFull(job.Audio, buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			even := len(data) &^ 1
			pcm, err := audio.DecodePCM16LE(data[:even])
			if err != nil {
				return Result{}, err
			}
			carry = append(carry[:0:0], data[even:]...)
			if err := feed(audio.ToFloat32(rs.Write(pcm))); err != nil {
				logger.Info().Msg("transcript: job cancelled")
				return Result{}, err
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return Result{}, fmt.Errorf("transcript: read audio: %w", rerr)
		}
	}
	if len(carry) > 0 {
		return Result{}, errdefs.Formatf("transcript", "audio stream ends mid-sample")
	}
	if tail := rs.Flush(); len(tail) > 0 {
		if err := feed(audio.ToFloat32(tail)); err != nil {
			logger.Info().Msg("transcript: job cancelled")
			return Result{}, err
		}
	}
	e.segmenter.Flush()
	if err := drain(); err != nil {
		logger.Info().Msg("transcript: job cancelled")
		return Result{}, err
	}

	e.setState(Finalizing)
	doc := acc.document()
	e.punctuate(ctx, doc, logger)
	e.diarize(ctx, doc, acc.spans, recording, logger)

	res := Result{
		ID:       job.ID,
		Document: doc,
		Text:     subtitle.Serialize(doc),
		Skipped:  acc.skipped,
		Segments: acc.segments,
		Duration: time.Since(began),
	}
	if job.Persist && e.opts.Store != nil {
		if err := e.opts.Store.Write(ctx, job.ID, res.Text); err != nil {
			return Result{}, fmt.Errorf("transcript: %w: %w", errdefs.ErrPersist, err)
		}
	}
	logger.Info().
		Int("entries", len(doc.Entries)).
		Int("segments", res.Segments).
		Int("skipped", res.Skipped).
		Dur("took", res.Duration).
		Msg("transcript: job finished")
	return res, nil
}
