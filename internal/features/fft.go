package features

import "math"

// fftPlan holds twiddle tables for one transform size. Sub-transforms of a
// size that divides n reuse the same tables with a stride.
type fftPlan struct {
	n   int
	sin []float64
	cos []float64
}

func newFFTPlan(n int) *fftPlan {
	p := &fftPlan{n: n, sin: make([]float64, n), cos: make([]float64, n)}
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		p.sin[i] = math.Sin(theta)
		p.cos[i] = math.Cos(theta)
	}
	return p
}

// workSize is the scratch length transform needs for an input of length n.
func workSize(n int) int { return 8*n + 8 }

// transform writes the complex spectrum of real input in into out as
// interleaved (re, im) pairs; len(out) == 2*len(in). Even lengths split
// recursively (decimation in time); odd lengths fall back to a direct DFT.
// work must hold at least workSize(len(in)) values and is clobbered.
func (p *fftPlan) transform(in, out, work []float64) {
	n := len(in)
	if n == 1 {
		out[0] = in[0]
		out[1] = 0
		return
	}
	if n%2 == 1 {
		p.dft(in, out)
		return
	}

	half := n / 2
	even := work[:half]
	odd := work[half:n]
	for i := 0; i < half; i++ {
		even[i] = in[2*i]
		odd[i] = in[2*i+1]
	}
	evenOut := work[n : 2*n]
	oddOut := work[2*n : 3*n]
	rest := work[3*n:]
	p.transform(even, evenOut, rest)
	p.transform(odd, oddOut, rest)

	step := p.n / n
	for k := 0; k < half; k++ {
		idx := k * step
		re := p.cos[idx]
		im := -p.sin[idx]

		reOdd := oddOut[2*k]
		imOdd := oddOut[2*k+1]

		out[2*k] = evenOut[2*k] + re*reOdd - im*imOdd
		out[2*k+1] = evenOut[2*k+1] + re*imOdd + im*reOdd

		out[2*(k+half)] = evenOut[2*k] - re*reOdd + im*imOdd
		out[2*(k+half)+1] = evenOut[2*k+1] - re*imOdd - im*reOdd
	}
}

func (p *fftPlan) dft(in, out []float64) {
	n := len(in)
	step := p.n / n
	for k := 0; k < n; k++ {
		var re, im float64
		for j := 0; j < n; j++ {
			idx := (k * j % n) * step
			re += in[j] * p.cos[idx]
			im -= in[j] * p.sin[idx]
		}
		out[2*k] = re
		out[2*k+1] = im
	}
}

// hann is the periodic Hann window.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}
