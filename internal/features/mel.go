package features

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/obiente/translate/subtitler/internal/errdefs"
)

// Filters is a mel filterbank: NMel rows of NBins weights, row-major.
type Filters struct {
	NMel  int
	NBins int
	Data  []float32
}

// LoadFilters reads a filterbank in the whisper binary layout: int32 n_mel,
// int32 n_bins, then n_mel*n_bins little-endian float32 weights.
func LoadFilters(r io.Reader) (*Filters, error) {
	var hdr [2]int32
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read mel header: %w", err)
	}
	nMel, nBins := int(hdr[0]), int(hdr[1])
	if nMel <= 0 || nBins <= 0 || nMel > 1024 || nBins > 1<<16 {
		return nil, errdefs.Formatf("load mel filters", "bad dimensions %dx%d", nMel, nBins)
	}
	data := make([]float32, nMel*nBins)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("read mel weights: %w", err)
	}
	return &Filters{NMel: nMel, NBins: nBins, Data: data}, nil
}

// WriteTo stores f in the layout LoadFilters reads.
func (f *Filters) WriteTo(w io.Writer) (int64, error) {
	hdr := [2]int32{int32(f.NMel), int32(f.NBins)}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, f.Data); err != nil {
		return 8, err
	}
	return int64(8 + 4*len(f.Data)), nil
}

// NewSlaneyFilters computes the Slaney-normalized mel filterbank (the
// librosa default) for fftSize at sampleRate.
func NewSlaneyFilters(nMel, fftSize, sampleRate int) *Filters {
	nBins := 1 + fftSize/2
	fftFreqs := make([]float64, nBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(fftSize)
	}

	lo, hi := hzToMel(0), hzToMel(float64(sampleRate)/2)
	pts := make([]float64, nMel+2)
	for i := range pts {
		pts[i] = melToHz(lo + (hi-lo)*float64(i)/float64(nMel+1))
	}

	data := make([]float32, nMel*nBins)
	for m := 0; m < nMel; m++ {
		left, center, right := pts[m], pts[m+1], pts[m+2]
		enorm := 2 / (right - left)
		for k, f := range fftFreqs {
			lower := (f - left) / (center - left)
			upper := (right - f) / (right - center)
			w := math.Max(0, math.Min(lower, upper))
			data[m*nBins+k] = float32(w * enorm)
		}
	}
	return &Filters{NMel: nMel, NBins: nBins, Data: data}
}

const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(f float64) float64 {
	if f < melMinLogHz {
		return f / melFSP
	}
	return melMinLogMel + math.Log(f/melMinLogHz)/melLogStep
}

func melToHz(m float64) float64 {
	if m < melMinLogMel {
		return m * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(m-melMinLogMel))
}
