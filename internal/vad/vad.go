// Package vad splits a 16 kHz float stream into speech segments and queues
// them in arrival order.
package vad

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/subtitler/internal/audio"
)

// Classifier labels one fixed-size frame of 16 kHz PCM16 as speech or not.
type Classifier interface {
	IsSpeech(frame []int16) (bool, error)
}

type Config struct {
	// Backend is "webrtc" or "energy".
	Backend string
	// Mode is the webrtc aggressiveness, 0-3.
	Mode int
	// Threshold is the RMS level (0-1) the energy backend treats as speech.
	Threshold float64
	// FrameMs must be 10, 20 or 30.
	FrameMs    int
	MinSpeech  time.Duration
	MaxSpeech  time.Duration
	MinSilence time.Duration
}

func DefaultConfig() Config {
	return Config{
		Backend:    "webrtc",
		Mode:       2,
		Threshold:  0.01,
		FrameMs:    30,
		MinSpeech:  250 * time.Millisecond,
		MaxSpeech:  10 * time.Second,
		MinSilence: 500 * time.Millisecond,
	}
}

// Segment is a span of speech. Start and End are seconds from stream start.
type Segment struct {
	Samples []float32
	Start   float64
	End     float64
}

func (s Segment) Duration() float64 { return float64(len(s.Samples)) / audio.TargetSampleRate }

// Segmenter is not safe for concurrent use; one transcription job owns it at
// a time and calls Reset between jobs.
type Segmenter struct {
	cls        Classifier
	frameLen   int
	minSpeech  int
	maxSpeech  int
	minSilence int

	pending    []float32
	frameInt   []int16
	processed  int
	inSpeech   bool
	speech     []float32
	speechAt   int
	silenceRun int
	queue      []Segment
}

// New builds a Segmenter with the classifier named by cfg.Backend.
func New(cfg Config) (*Segmenter, error) {
	var (
		cls Classifier
		err error
	)
	switch cfg.Backend {
	case "", "webrtc":
		cls, err = NewWebRTCClassifier(cfg.Mode, cfg.FrameMs)
	case "energy":
		cls = EnergyClassifier{Threshold: cfg.Threshold}
	default:
		return nil, fmt.Errorf("vad: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return NewWithClassifier(cfg, cls)
}

func NewWithClassifier(cfg Config, cls Classifier) (*Segmenter, error) {
	switch cfg.FrameMs {
	case 10, 20, 30:
	case 0:
		cfg.FrameMs = 30
	default:
		return nil, fmt.Errorf("vad: frame size %dms not one of 10, 20, 30", cfg.FrameMs)
	}
	if cfg.MaxSpeech > 0 && cfg.MinSpeech > cfg.MaxSpeech {
		return nil, fmt.Errorf("vad: min speech %s exceeds max speech %s", cfg.MinSpeech, cfg.MaxSpeech)
	}
	s := &Segmenter{
		cls:        cls,
		frameLen:   audio.TargetSampleRate * cfg.FrameMs / 1000,
		minSpeech:  toSamples(cfg.MinSpeech),
		maxSpeech:  toSamples(cfg.MaxSpeech),
		minSilence: toSamples(cfg.MinSilence),
	}
	s.frameInt = make([]int16, s.frameLen)
	return s, nil
}

func toSamples(d time.Duration) int {
	return int(d.Seconds() * audio.TargetSampleRate)
}

// AcceptWaveform feeds normalized samples. Complete frames are classified
// right away; a partial frame waits for more input or Flush.
func (s *Segmenter) AcceptWaveform(samples []float32) {
	s.pending = append(s.pending, samples...)
	n := 0
	for len(s.pending)-n >= s.frameLen {
		s.step(s.pending[n:n+s.frameLen], s.frameLen)
		n += s.frameLen
	}
	if n > 0 {
		s.pending = append(s.pending[:0], s.pending[n:]...)
	}
}

// Flush classifies the trailing partial frame and closes any open segment.
func (s *Segmenter) Flush() {
	if len(s.pending) > 0 {
		frame := make([]float32, s.frameLen)
		copy(frame, s.pending)
		s.step(frame, len(s.pending))
		s.pending = s.pending[:0]
	}
	if s.inSpeech {
		s.emit(s.speech[:len(s.speech)-s.silenceRun], s.speechAt)
		s.inSpeech = false
		s.speech = nil
		s.silenceRun = 0
	}
}

func (s *Segmenter) HasSegment() bool { return len(s.queue) > 0 }

// PopSegment dequeues the oldest segment. Calling it on an empty queue is a
// programming error and panics.
func (s *Segmenter) PopSegment() Segment {
	if len(s.queue) == 0 {
		panic("vad: PopSegment on empty queue")
	}
	seg := s.queue[0]
	s.queue[0] = Segment{}
	s.queue = s.queue[1:]
	return seg
}

// Reset drops queued segments and all stream state.
func (s *Segmenter) Reset() {
	s.pending = s.pending[:0]
	s.processed = 0
	s.inSpeech = false
	s.speech = nil
	s.speechAt = 0
	s.silenceRun = 0
	s.queue = nil
}

// step consumes one frame of which the first n samples are real input.
func (s *Segmenter) step(frame []float32, n int) {
	for i, v := range frame {
		s.frameInt[i] = clamp16(v)
	}
	speech, err := s.cls.IsSpeech(s.frameInt)
	if err != nil {
		log.Warn().Err(err).Int("offset", s.processed).Msg("vad: classify failed, treating frame as silence")
		speech = false
	}
	input := frame[:n]
	start := s.processed
	s.processed += n

	if !s.inSpeech {
		if !speech {
			return
		}
		s.inSpeech = true
		s.speechAt = start
		s.speech = append(s.speech[:0], input...)
		s.silenceRun = 0
	} else {
		s.speech = append(s.speech, input...)
		if speech {
			s.silenceRun = 0
		} else {
			s.silenceRun += n
		}
	}

	if s.minSilence > 0 && s.silenceRun >= s.minSilence {
		s.emit(s.speech[:len(s.speech)-s.silenceRun], s.speechAt)
		s.inSpeech = false
		s.speech = nil
		s.silenceRun = 0
		return
	}
	for s.maxSpeech > 0 && len(s.speech) >= s.maxSpeech {
		s.emit(s.speech[:s.maxSpeech], s.speechAt)
		rest := append([]float32(nil), s.speech[s.maxSpeech:]...)
		s.speechAt += s.maxSpeech
		s.speech = rest
		if s.silenceRun > len(rest) {
			s.silenceRun = len(rest)
		}
		if len(rest) == 0 {
			s.inSpeech = false
		}
	}
}

func (s *Segmenter) emit(samples []float32, at int) {
	if len(samples) == 0 || len(samples) < s.minSpeech {
		log.Debug().Int("samples", len(samples)).Int("min", s.minSpeech).Msg("vad: dropping short segment")
		return
	}
	seg := Segment{
		Samples: append([]float32(nil), samples...),
		Start:   float64(at) / audio.TargetSampleRate,
		End:     float64(at+len(samples)) / audio.TargetSampleRate,
	}
	s.queue = append(s.queue, seg)
	log.Debug().Float64("start", seg.Start).Float64("end", seg.End).Int("queued", len(s.queue)).Msg("vad: segment queued")
}

// EnergyClassifier marks frames whose RMS reaches Threshold.
type EnergyClassifier struct {
	Threshold float64
}

func (c EnergyClassifier) IsSpeech(frame []int16) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}
	var sum float64
	for _, v := range frame {
		f := float64(v) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum/float64(len(frame))) >= c.Threshold, nil
}

func clamp16(v float32) int16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}
