package audio

import (
	"errors"
	"io"

	"github.com/mewkiz/flac"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// DecodeFLAC decodes a FLAC stream frame by frame into interleaved PCM16.
func DecodeFLAC(r io.Reader) (Clip, error) {
	stream, err := flac.New(r)
	if err != nil {
		return Clip{}, errdefs.Formatf("decode flac", "%v", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bps := int(stream.Info.BitsPerSample)
	out := make([]int16, 0, int(stream.Info.NSamples)*channels)
	for {
		f, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Clip{}, errdefs.Formatf("decode flac", "at sample %d: %v", len(out)/max(channels, 1), err)
		}
		n := int(f.BlockSize)
		for i := 0; i < n; i++ {
			for c := 0; c < channels; c++ {
				out = append(out, scaleTo16(int(f.Subframes[c].Samples[i]), bps))
			}
		}
	}
	return Clip{Samples: out, SampleRate: int(stream.Info.SampleRate), Channels: channels}, nil
}
