package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Clip is decoded PCM16 audio with its native format.
type Clip struct {
	Samples    []int16 // interleaved when Channels > 1
	SampleRate int
	Channels   int
}

// Mono returns the clip downmixed to a single channel.
func (c Clip) Mono() Clip {
	if c.Channels <= 1 {
		return c
	}
	return Clip{Samples: Downmix(c.Samples, c.Channels), SampleRate: c.SampleRate, Channels: 1}
}

// Reader exposes the mono samples as a little-endian PCM16 byte stream.
func (c Clip) Reader() io.Reader {
	return bytes.NewReader(EncodePCM16LE(c.Mono().Samples))
}

// Duration in seconds.
func (c Clip) Duration() float64 {
	ch := c.Channels
	if ch <= 0 {
		ch = 1
	}
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)/ch) / float64(c.SampleRate)
}

// Open decodes a file by extension: .wav, .flac, or raw PCM16LE for anything
// else, in which case rawRate and rawChannels describe the stream.
func Open(path string, rawRate, rawChannels int) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()
	return Decode(f, filepath.Ext(path), rawRate, rawChannels)
}

// Decode is Open for an already opened stream; ext selects the container.
func Decode(r io.ReadSeeker, ext string, rawRate, rawChannels int) (Clip, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav", "wave":
		return DecodeWAV(r)
	case "flac":
		return DecodeFLAC(r)
	default:
		b, err := io.ReadAll(r)
		if err != nil {
			return Clip{}, fmt.Errorf("read pcm: %w", err)
		}
		pcm, err := DecodePCM16LE(b)
		if err != nil {
			return Clip{}, err
		}
		if rawRate <= 0 {
			rawRate = TargetSampleRate
		}
		if rawChannels <= 0 {
			rawChannels = 1
		}
		return Clip{Samples: pcm, SampleRate: rawRate, Channels: rawChannels}, nil
	}
}
