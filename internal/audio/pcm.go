package audio

import (
	"encoding/binary"
	"math"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// TargetSampleRate is the only rate the pipeline works at after Normalize.
const TargetSampleRate = 16000

// Normalize converts a little-endian PCM16 mono chunk captured at sourceRate
// into float32 samples in [-1, 1] at TargetSampleRate. An odd byte count is a
// FormatError; nothing is truncated.
func Normalize(chunk []byte, sourceRate int) ([]float32, error) {
	pcm, err := DecodePCM16LE(chunk)
	if err != nil {
		return nil, err
	}
	if sourceRate <= 0 {
		return nil, errdefs.Formatf("normalize", "invalid sample rate %d", sourceRate)
	}
	if sourceRate != TargetSampleRate {
		pcm = ResampleLinear(pcm, sourceRate, TargetSampleRate)
	}
	return ToFloat32(pcm), nil
}

// DecodePCM16LE reinterprets b as little-endian signed 16-bit samples.
func DecodePCM16LE(b []byte) ([]int16, error) {
	if len(b)%2 != 0 {
		return nil, errdefs.Formatf("decode pcm16", "length %d must be even", len(b))
	}
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out, nil
}

// EncodePCM16LE is the inverse of DecodePCM16LE.
func EncodePCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// ResampleLinear resamples PCM16 from inRate to outRate using linear
// interpolation. Output length is round(len*outRate/inRate); the sample past
// the end of the input counts as zero.
func ResampleLinear(samples []int16, inRate, outRate int) []int16 {
	if inRate == outRate || inRate <= 0 || outRate <= 0 {
		return append([]int16(nil), samples...)
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(samples)) * ratio))
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		idx := int(math.Floor(srcPos))
		frac := srcPos - float64(idx)
		var s0, s1 float64
		if idx < len(samples) {
			s0 = float64(samples[idx])
		}
		if idx+1 < len(samples) {
			s1 = float64(samples[idx+1])
		}
		out[i] = clamp16(math.Round(s0*(1-frac) + s1*frac))
	}
	return out
}

// ToFloat32 scales PCM16 by 1/32768.
func ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// FromFloat32 converts normalized samples back to PCM16, clamping to range.
func FromFloat32(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clamp16(math.Round(float64(s) * 32768.0))
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

func clamp16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// Resampler applies ResampleLinear across a stream delivered in pieces. The
// concatenated output of Write calls plus Flush equals ResampleLinear over
// the whole input, so chunk boundaries add no discontinuity.
type Resampler struct {
	inRate, outRate int
	ratio           float64
	buf             []int16 // input from absolute index base onward
	base            int
	total           int // input samples seen
	next            int // next output index
}

func NewResampler(inRate, outRate int) *Resampler {
	return &Resampler{inRate: inRate, outRate: outRate, ratio: float64(outRate) / float64(inRate)}
}

func (r *Resampler) passthrough() bool {
	return r.inRate == r.outRate || r.inRate <= 0 || r.outRate <= 0
}

// Write consumes samples and returns every output whose neighbours are
// both known. The rest is held until more input or Flush.
func (r *Resampler) Write(samples []int16) []int16 {
	if r.passthrough() {
		return append([]int16(nil), samples...)
	}
	r.buf = append(r.buf, samples...)
	r.total += len(samples)
	limit := int(math.Round(float64(r.total) * r.ratio))
	var out []int16
	for r.next < limit {
		idx := int(math.Floor(float64(r.next) / r.ratio))
		if idx+1 >= r.total {
			break
		}
		out = append(out, r.sample(r.next))
		r.next++
	}
	r.trim()
	return out
}

// Flush emits the tail, treating the sample past the end as zero, and
// resets the resampler for a new stream.
func (r *Resampler) Flush() []int16 {
	if r.passthrough() {
		return nil
	}
	limit := int(math.Round(float64(r.total) * r.ratio))
	var out []int16
	for ; r.next < limit; r.next++ {
		out = append(out, r.sample(r.next))
	}
	r.buf, r.base, r.total, r.next = r.buf[:0], 0, 0, 0
	return out
}

func (r *Resampler) sample(i int) int16 {
	srcPos := float64(i) / r.ratio
	idx := int(math.Floor(srcPos))
	frac := srcPos - float64(idx)
	var s0, s1 float64
	if idx < r.total {
		s0 = float64(r.buf[idx-r.base])
	}
	if idx+1 < r.total {
		s1 = float64(r.buf[idx+1-r.base])
	}
	return clamp16(math.Round(s0*(1-frac) + s1*frac))
}

func (r *Resampler) trim() {
	keep := int(math.Floor(float64(r.next) / r.ratio))
	if keep > r.total {
		keep = r.total
	}
	if drop := keep - r.base; drop > 0 {
		r.buf = append(r.buf[:0], r.buf[drop:]...)
		r.base = keep
	}
}
