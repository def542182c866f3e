package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/obiente/translate/subtitler/internal/audio"
	"github.com/obiente/translate/subtitler/internal/diarize"
	"github.com/obiente/translate/subtitler/internal/errdefs"
	"github.com/obiente/translate/subtitler/internal/features"
	"github.com/obiente/translate/subtitler/internal/storage"
	"github.com/obiente/translate/subtitler/internal/stt"
	"github.com/obiente/translate/subtitler/internal/subtitle"
	"github.com/obiente/translate/subtitler/internal/vad"
)

type fakeRecognizer struct {
	calls  int
	failAt int // 1-based call that fails, 0 for none
	hook   func(call int)
	closed bool
}

func (f *fakeRecognizer) Name() string { return "fake" }
func (f *fakeRecognizer) Close() error { f.closed = true; return nil }

func (f *fakeRecognizer) Recognize(_ context.Context, in stt.Input) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook(f.calls)
	}
	if in.Features.NMel != features.DefaultNMel || in.Features.NFrames == 0 {
		return "", fmt.Errorf("bad features %dx%d", in.Features.NMel, in.Features.NFrames)
	}
	if f.calls == f.failAt {
		return "", errors.New("model exploded")
	}
	return fmt.Sprintf("segment %d", f.calls), nil
}

type failingStore struct{}

func (failingStore) Write(context.Context, string, string) error { return errors.New("disk full") }
func (failingStore) Read(context.Context, string) ([]string, error) {
	return nil, storage.ErrNotFound
}
func (failingStore) Close() error { return nil }

type fixedDiarizer []diarize.SpeakerSegment

func (fixedDiarizer) Name() string { return "fixed" }
func (d fixedDiarizer) Process(context.Context, []float32) ([]diarize.SpeakerSegment, error) {
	return d, nil
}

type recordingDiarizer struct{ got []float32 }

func (*recordingDiarizer) Name() string { return "recording" }
func (d *recordingDiarizer) Process(_ context.Context, samples []float32) ([]diarize.SpeakerSegment, error) {
	d.got = append([]float32(nil), samples...)
	return nil, nil
}

func tone(sec float64) []float32 {
	out := make([]float32, int(sec*audio.TargetSampleRate))
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/audio.TargetSampleRate))
	}
	return out
}

func silence(sec float64) []float32 { return make([]float32, int(sec*audio.TargetSampleRate)) }

// speech builds PCM with one tone per duration, each followed by a second
// of silence.
func speech(durs ...float64) []byte {
	var samples []float32
	for _, d := range durs {
		samples = append(samples, tone(d)...)
		samples = append(samples, silence(1)...)
	}
	return audio.EncodePCM16LE(audio.FromFloat32(samples))
}

func newEngine(t *testing.T, rec stt.Recognizer, mutate func(*Options)) *Engine {
	t.Helper()
	cfg := vad.DefaultConfig()
	cfg.Backend = "energy"
	opts := Options{VAD: cfg, Features: features.Config{Workers: 2}}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(func() (stt.Recognizer, error) { return rec, nil }, opts)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestTranscribeCumulativeOffsets(t *testing.T) {
	rec := &fakeRecognizer{}
	e := newEngine(t, rec, nil)
	var seen int
	res, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(speech(2.0, 3.0, 1.5)),
		SampleRate: audio.TargetSampleRate,
		OnEntry:    func(subtitle.Entry) { seen++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	entries := res.Document.Entries
	if len(entries) != 3 || res.Skipped != 0 || res.Segments != 3 || seen != 3 {
		t.Fatalf("entries=%d skipped=%d segments=%d seen=%d", len(entries), res.Skipped, res.Segments, seen)
	}
	if entries[0].Start != 0 {
		t.Errorf("first entry starts at %v", entries[0].Start)
	}
	if entries[1].Start < 2.0 || entries[2].Start < 5.0 {
		t.Errorf("starts = %v, %v", entries[1].Start, entries[2].Start)
	}
	for i, en := range entries {
		if en.Index != i+1 {
			t.Errorf("entry %d has index %d", i, en.Index)
		}
		if i > 0 && math.Abs(en.Start-entries[i-1].End) > 1e-9 {
			t.Errorf("entry %d starts at %v, previous ended at %v", i, en.Start, entries[i-1].End)
		}
	}
	if res.ID == "" || res.Text == "" {
		t.Errorf("result id=%q text=%q", res.ID, res.Text)
	}
	if e.State() != Idle {
		t.Errorf("state = %s", e.State())
	}
}

func TestTranscribeSkipsFailedSegment(t *testing.T) {
	rec := &fakeRecognizer{failAt: 2}
	e := newEngine(t, rec, nil)
	res, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(speech(2.0, 3.0, 1.5)),
		SampleRate: audio.TargetSampleRate,
	})
	if err != nil {
		t.Fatal(err)
	}
	entries := res.Document.Entries
	if len(entries) != 2 || res.Skipped != 1 {
		t.Fatalf("entries=%d skipped=%d", len(entries), res.Skipped)
	}
	if entries[1].Index != 2 || entries[1].Start < 5.0 {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestTranscribeResamples(t *testing.T) {
	rec := &fakeRecognizer{}
	e := newEngine(t, rec, nil)
	samples := append(tone(2.0), silence(1)...)
	pcm16k := audio.FromFloat32(samples)
	pcm8k := audio.ResampleLinear(pcm16k, audio.TargetSampleRate, 8000)
	res, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(audio.EncodePCM16LE(pcm8k)),
		SampleRate: 8000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Document.Entries) != 1 {
		t.Fatalf("entries = %d", len(res.Document.Entries))
	}
	if d := res.Document.Entries[0].End; d < 1.9 || d > 2.2 {
		t.Errorf("entry ends at %v", d)
	}
}

func TestTranscribeResamplesAcrossReadChunks(t *testing.T) {
	const rate = 44100
	src := make([]float32, int(2.5*rate))
	for i := range src {
		src[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}
	src = append(src, make([]float32, rate)...)
	pcm := audio.FromFloat32(src)
	rec := &recordingDiarizer{}
	e := newEngine(t, &fakeRecognizer{}, func(o *Options) { o.Diarizer = rec })
	if _, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(audio.EncodePCM16LE(pcm)),
		SampleRate: rate,
	}); err != nil {
		t.Fatal(err)
	}
	want := audio.ToFloat32(audio.ResampleLinear(pcm, rate, audio.TargetSampleRate))
	if len(rec.got) != len(want) {
		t.Fatalf("recording has %d samples, want %d", len(rec.got), len(want))
	}
	for i := range want {
		if rec.got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, rec.got[i], want[i])
		}
	}
}

func TestTranscribeQueuedJobKeepsProcessingState(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var e *Engine
	var states []State
	rec := &fakeRecognizer{hook: func(call int) {
		if call == 1 {
			close(entered)
			<-release
			return
		}
		states = append(states, e.State())
	}}
	e = newEngine(t, rec, nil)

	first := make(chan error, 1)
	go func() {
		_, err := e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(speech(1.0)), SampleRate: audio.TargetSampleRate})
		first <- err
	}()
	<-entered
	second := make(chan error, 1)
	go func() {
		_, err := e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(speech(1.0, 1.0)), SampleRate: audio.TargetSampleRate})
		second <- err
	}()
	close(release)
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	if err := <-second; err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 {
		t.Fatalf("second job recognized %d segments", len(states))
	}
	for i, st := range states {
		if st != Processing {
			t.Errorf("segment %d of queued job ran in state %s", i, st)
		}
	}
	if e.State() != Idle {
		t.Errorf("final state = %s", e.State())
	}
}

func TestTranscribeOddLength(t *testing.T) {
	e := newEngine(t, &fakeRecognizer{}, nil)
	pcm := append(speech(0.5), 0x01)
	_, err := e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(pcm), SampleRate: audio.TargetSampleRate})
	if !errors.Is(err, errdefs.ErrFormat) {
		t.Fatalf("err = %v", err)
	}
}

func TestTranscribeNotInitialized(t *testing.T) {
	e, err := New(func() (stt.Recognizer, error) { return nil, errors.New("no model file") }, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(speech(1)), SampleRate: audio.TargetSampleRate})
	if !errors.Is(err, errdefs.ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
	if e.State() != Idle {
		t.Errorf("state = %s", e.State())
	}
}

func TestTranscribeAfterClose(t *testing.T) {
	rec := &fakeRecognizer{}
	e := newEngine(t, rec, nil)
	if err := e.Load(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !rec.closed {
		t.Error("recognizer not closed")
	}
	if e.State() != Idle {
		t.Errorf("state after close = %s", e.State())
	}
	_, err := e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(speech(1)), SampleRate: audio.TargetSampleRate})
	if !errors.Is(err, errdefs.ErrNotInitialized) {
		t.Fatalf("err = %v", err)
	}
}

func TestTranscribeCancelFinishesCurrentSegment(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &fakeRecognizer{hook: func(int) { cancel() }}
	e := newEngine(t, rec, nil)
	_, err := e.Transcribe(ctx, Job{Audio: bytes.NewReader(speech(1.0, 1.0, 1.0)), SampleRate: audio.TargetSampleRate})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if rec.calls != 1 {
		t.Errorf("recognizer called %d times", rec.calls)
	}

	// The engine is reusable after a cancelled job.
	res, err := e.Transcribe(context.Background(), Job{Audio: bytes.NewReader(speech(1.0)), SampleRate: audio.TargetSampleRate})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Document.Entries) != 1 || res.Document.Entries[0].Start != 0 {
		t.Fatalf("second job entries = %+v", res.Document.Entries)
	}
}

func TestTranscribePersists(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := newEngine(t, &fakeRecognizer{}, func(o *Options) { o.Store = store })
	res, err := e.Transcribe(context.Background(), Job{
		ID:         "talk",
		Audio:      bytes.NewReader(speech(1.0)),
		SampleRate: audio.TargetSampleRate,
		Persist:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := storage.ReadText(context.Background(), store, "talk")
	if err != nil {
		t.Fatal(err)
	}
	if got != res.Text {
		t.Fatalf("stored %q, want %q", got, res.Text)
	}
}

func TestTranscribePersistFailure(t *testing.T) {
	e := newEngine(t, &fakeRecognizer{}, func(o *Options) { o.Store = failingStore{} })
	_, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(speech(1.0)),
		SampleRate: audio.TargetSampleRate,
		Persist:    true,
	})
	if !errors.Is(err, errdefs.ErrPersist) {
		t.Fatalf("err = %v", err)
	}
}

func TestTranscribeDiarizesBySourceInterval(t *testing.T) {
	d := fixedDiarizer{{Start: 0, End: 2.5, Speaker: 1}, {Start: 2.5, End: 10, Speaker: 2}}
	e := newEngine(t, &fakeRecognizer{}, func(o *Options) { o.Diarizer = d })
	res, err := e.Transcribe(context.Background(), Job{
		Audio:      bytes.NewReader(speech(2.0, 2.0)),
		SampleRate: audio.TargetSampleRate,
	})
	if err != nil {
		t.Fatal(err)
	}
	entries := res.Document.Entries
	if len(entries) != 2 || entries[0].Speaker != 1 || entries[1].Speaker != 2 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestStateString(t *testing.T) {
	if Finalizing.String() != "finalizing" || State(42).String() != "state(42)" {
		t.Fatal("unexpected state names")
	}
}
