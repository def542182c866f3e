// Package features turns 16 kHz audio segments into normalized log-mel
// spectrogram matrices.
package features

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

const (
	DefaultFFTSize = 400
	DefaultHopSize = 160
	DefaultNMel    = 80

	// padValue fills frames past the last full hop.
	padValue = -8.0
	// clampRange is how far below the global max values are kept.
	clampRange = 8.0
	logFloor   = 1e-10
)

// Matrix is NMel x NFrames, row-major by mel bin.
type Matrix struct {
	NMel    int
	NFrames int
	Data    []float32
}

func (m Matrix) At(mel, frame int) float32 { return m.Data[mel*m.NFrames+frame] }

type Config struct {
	FFTSize int
	HopSize int
	// Workers is the number of goroutines frames are spread over; 0 means
	// runtime.NumCPU().
	Workers int
}

func DefaultConfig() Config {
	return Config{FFTSize: DefaultFFTSize, HopSize: DefaultHopSize}
}

// Extractor is safe for concurrent use; filters, window and twiddles are
// read-only after construction.
type Extractor struct {
	filters *Filters
	fftSize int
	hop     int
	workers int
	window  []float64
	plan    *fftPlan
}

func NewExtractor(filters *Filters, cfg Config) (*Extractor, error) {
	if cfg.FFTSize <= 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = DefaultHopSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if filters == nil {
		return nil, fmt.Errorf("features: nil mel filters")
	}
	if want := 1 + cfg.FFTSize/2; filters.NBins != want {
		return nil, fmt.Errorf("features: filters have %d bins, fft size %d needs %d", filters.NBins, cfg.FFTSize, want)
	}
	return &Extractor{
		filters: filters,
		fftSize: cfg.FFTSize,
		hop:     cfg.HopSize,
		workers: cfg.Workers,
		window:  hann(cfg.FFTSize),
		plan:    newFFTPlan(cfg.FFTSize),
	}, nil
}

func (e *Extractor) NMel() int    { return e.filters.NMel }
func (e *Extractor) HopSize() int { return e.hop }

// Extract computes the feature matrix of one segment. The matrix has
// ceil(len/hop) frames; frames past len/hop hold the pad value before
// normalization.
func (e *Extractor) Extract(samples []float32) Matrix {
	nMel := e.filters.NMel
	nFrames := (len(samples) + e.hop - 1) / e.hop
	meaningful := len(samples) / e.hop
	m := Matrix{NMel: nMel, NFrames: nFrames, Data: make([]float32, nMel*nFrames)}
	if nFrames == 0 {
		return m
	}

	workers := e.workers
	if workers > meaningful {
		workers = meaningful
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(first int) {
			defer wg.Done()
			e.frames(samples, m, first, workers, meaningful)
		}(w)
	}
	wg.Wait()

	for f := meaningful; f < nFrames; f++ {
		for j := 0; j < nMel; j++ {
			m.Data[j*nFrames+f] = padValue
		}
	}
	normalize(m.Data)
	return m
}

// frames handles frames first, first+stride, ... below limit with private
// scratch buffers. Frames are disjoint columns, so workers never share writes.
func (e *Extractor) frames(samples []float32, m Matrix, first, stride, limit int) {
	n := e.fftSize
	nBins := e.filters.NBins
	in := make([]float64, n)
	out := make([]float64, 2*n)
	work := make([]float64, workSize(n))
	power := make([]float64, n)

	for f := first; f < limit; f += stride {
		offset := f * e.hop
		for j := 0; j < n; j++ {
			if offset+j < len(samples) {
				in[j] = e.window[j] * float64(samples[offset+j])
			} else {
				in[j] = 0
			}
		}
		e.plan.transform(in, out, work)

		for j := 0; j < n; j++ {
			power[j] = out[2*j]*out[2*j] + out[2*j+1]*out[2*j+1]
		}
		for j := 1; j < n/2; j++ {
			power[j] += power[n-j]
		}

		for mel := 0; mel < m.NMel; mel++ {
			row := e.filters.Data[mel*nBins : (mel+1)*nBins]
			var sum float64
			for k := 0; k < nBins; k++ {
				sum += float64(row[k]) * power[k]
			}
			m.Data[mel*m.NFrames+f] = float32(math.Log10(math.Max(sum, logFloor)))
		}
	}
}

func normalize(data []float32) {
	if len(data) == 0 {
		return
	}
	max := data[0]
	for _, v := range data[1:] {
		if v > max {
			max = v
		}
	}
	floor := max - clampRange
	for i, v := range data {
		if v < floor {
			v = floor
		}
		data[i] = (v + 4) / 4
	}
}
