package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// DecodeWAV decodes a WAV stream into PCM16, rescaling other bit depths.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, errdefs.Formatf("decode wav", "invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil && !errors.Is(err, io.EOF) {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil {
		return Clip{}, errdefs.Formatf("decode wav", "empty wav buffer")
	}
	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = scaleTo16(v, bitDepth)
	}
	sr := int(dec.SampleRate)
	ch := int(dec.NumChans)
	if buf.Format != nil {
		if sr == 0 {
			sr = buf.Format.SampleRate
		}
		if ch == 0 {
			ch = buf.Format.NumChannels
		}
	}
	if sr == 0 {
		sr = TargetSampleRate
	}
	if ch == 0 {
		ch = 1
	}
	return Clip{Samples: out, SampleRate: sr, Channels: ch}, nil
}

// EncodeWAV writes mono float samples as a 16-bit WAV file.
func EncodeWAV(samples []float32, sampleRate int) ([]byte, error) {
	ws := &writeSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range FromFloat32(samples) {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return ws.buf, nil
}

func scaleTo16(v, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(v)
	case bitDepth == 8:
		// 8-bit WAV is unsigned
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return int16(v >> (bitDepth - 16))
	default:
		return int16(v << (16 - bitDepth))
	}
}

// writeSeeker is an in-memory io.WriteSeeker; the wav encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	end := w.pos + len(p)
	if end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos = end
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}
