// Package dsp implements the signal processing behind the analysis
// pipeline: FIR frequency filtering, Welch spectral estimation, FastICA
// decomposition, Morlet time-frequency maps and phase-lag connectivity.
// Routines operate on float64 matrices laid out [channel][sample].
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// FilterSpec describes a frequency filter. A zero or negative value
// disables that part of the filter.
type FilterSpec struct {
	Highpass float64
	Lowpass  float64
	Notch    float64
}

// Enabled reports whether the spec asks for any filtering at all.
func (s FilterSpec) Enabled() bool {
	return s.Highpass > 0 || s.Lowpass > 0 || s.Notch > 0
}

// notchWidth is the stop-band width of the notch filter in Hz.
const notchWidth = 1.0

// Filter applies the spec to every row of data in place. The filters are
// windowed-sinc FIRs (Hamming window) applied as zero-phase linear
// convolutions with reflected edges, so filtered data has no group
// delay.
func Filter(data [][]float64, rate float64, spec FilterSpec) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return fmt.Errorf("no data to filter")
	}
	kernels, err := designKernels(rate, spec)
	if err != nil {
		return err
	}
	n := len(data[0])
	for _, k := range kernels {
		if len(k) >= n {
			return fmt.Errorf("recording too short for the requested filter (%d taps, %d samples)",
				len(k), n)
		}
		conv := newConvolver(n, k)
		for c := range data {
			conv.apply(data[c])
		}
	}
	return nil
}

// designKernels validates the spec against the Nyquist frequency and
// returns the kernels to apply in order: the band filter first, then the
// notch.
func designKernels(rate float64, spec FilterSpec) ([][]float64, error) {
	nyq := rate / 2
	hp, lp, notch := spec.Highpass, spec.Lowpass, spec.Notch
	if hp > 0 && hp >= nyq {
		return nil, fmt.Errorf("highpass %g Hz is at or above Nyquist (%g Hz)", hp, nyq)
	}
	if lp > 0 && lp >= nyq {
		return nil, fmt.Errorf("lowpass %g Hz is at or above Nyquist (%g Hz)", lp, nyq)
	}
	if hp > 0 && lp > 0 && hp >= lp {
		return nil, fmt.Errorf("highpass %g Hz must be below lowpass %g Hz", hp, lp)
	}
	if notch > 0 && notch+notchWidth/2 >= nyq {
		return nil, fmt.Errorf("notch %g Hz is too close to Nyquist (%g Hz)", notch, nyq)
	}

	var kernels [][]float64
	switch {
	case hp > 0 && lp > 0:
		kernels = append(kernels, bandpassKernel(hp, lp, rate))
	case hp > 0:
		kernels = append(kernels, highpassKernel(hp, rate))
	case lp > 0:
		kernels = append(kernels, lowpassKernel(lp, rate, lowpassTaps(lp, rate)))
	}
	if notch > 0 {
		kernels = append(kernels, notchKernel(notch, rate))
	}
	if len(kernels) == 0 {
		return nil, fmt.Errorf("no filter enabled")
	}
	return kernels, nil
}

// transition width in Hz, clamped the way MNE clamps its defaults.
func transitionWidth(cutoff, nyq float64) float64 {
	tb := 0.25 * cutoff
	if tb < 2.0 {
		tb = 2.0
	}
	if tb > cutoff {
		tb = cutoff
	}
	if room := nyq - cutoff; tb > room && room > 0 {
		tb = room
	}
	return tb
}

// taps returns an odd FIR length for a Hamming window and the given
// transition width.
func taps(tb, rate float64) int {
	n := int(math.Ceil(3.3 * rate / tb))
	if n%2 == 0 {
		n++
	}
	if n < 3 {
		n = 3
	}
	return n
}

func lowpassTaps(fc, rate float64) int {
	return taps(transitionWidth(fc, rate/2), rate)
}

// lowpassKernel is a Hamming-windowed sinc with unity DC gain.
func lowpassKernel(fc, rate float64, n int) []float64 {
	h := make([]float64, n)
	m := (n - 1) / 2
	fn := fc / rate
	for i := range h {
		k := float64(i - m)
		if k == 0 {
			h[i] = 2 * math.Pi * fn
		} else {
			h[i] = math.Sin(2*math.Pi*fn*k) / k
		}
	}
	window.Hamming(h)
	var sum float64
	for _, v := range h {
		sum += v
	}
	for i := range h {
		h[i] /= sum
	}
	return h
}

// highpassKernel inverts a lowpass spectrally: delta minus lowpass.
func highpassKernel(fc, rate float64) []float64 {
	h := lowpassKernel(fc, rate, taps(transitionWidth(fc, rate/2), rate))
	for i := range h {
		h[i] = -h[i]
	}
	h[(len(h)-1)/2] += 1
	return h
}

// bandpassKernel is the difference of two lowpasses of equal length.
func bandpassKernel(lo, hi, rate float64) []float64 {
	tbLo := transitionWidth(lo, rate/2)
	tbHi := transitionWidth(hi, rate/2)
	tb := math.Min(tbLo, tbHi)
	n := taps(tb, rate)
	upper := lowpassKernel(hi, rate, n)
	lower := lowpassKernel(lo, rate, n)
	for i := range upper {
		upper[i] -= lower[i]
	}
	return upper
}

// notchKernel is a narrow band-stop: delta minus a bandpass around f0.
func notchKernel(f0, rate float64) []float64 {
	lo := f0 - notchWidth/2
	hi := f0 + notchWidth/2
	n := taps(notchWidth/2, rate)
	upper := lowpassKernel(hi, rate, n)
	lower := lowpassKernel(lo, rate, n)
	h := make([]float64, n)
	for i := range h {
		h[i] = -(upper[i] - lower[i])
	}
	h[(n-1)/2] += 1
	return h
}

// convolver performs repeated same-length linear convolution with a
// fixed kernel via the FFT, with reflected edge padding.
type convolver struct {
	n     int // signal length
	half  int // kernel delay
	nfft  int
	fft   *fourier.FFT
	hfreq []complex128
	buf   []float64
	freq  []complex128
}

func newConvolver(n int, kernel []float64) *convolver {
	half := (len(kernel) - 1) / 2
	padded := n + 2*half
	nfft := nextPow2(padded + len(kernel) - 1)
	fft := fourier.NewFFT(nfft)

	hbuf := make([]float64, nfft)
	copy(hbuf, kernel)
	return &convolver{
		n:     n,
		half:  half,
		nfft:  nfft,
		fft:   fft,
		hfreq: fft.Coefficients(nil, hbuf),
		buf:   make([]float64, nfft),
		freq:  make([]complex128, nfft/2+1),
	}
}

// apply filters x in place.
func (cv *convolver) apply(x []float64) {
	// Reflect the edges so the filter does not see a step at the ends.
	for i := range cv.buf {
		cv.buf[i] = 0
	}
	for i := 0; i < cv.half; i++ {
		cv.buf[i] = x[reflectIndex(i-cv.half, cv.n)]
	}
	copy(cv.buf[cv.half:cv.half+cv.n], x)
	for i := 0; i < cv.half; i++ {
		cv.buf[cv.half+cv.n+i] = x[reflectIndex(cv.n+i, cv.n)]
	}

	cv.fft.Coefficients(cv.freq, cv.buf)
	for i := range cv.freq {
		cv.freq[i] *= cv.hfreq[i]
	}
	out := cv.fft.Sequence(nil, cv.freq)

	// The inverse transform is unnormalized; compensate while cropping
	// out the kernel delay and the reflected padding.
	scale := 1.0 / float64(cv.nfft)
	offset := 2 * cv.half // padding plus delay
	for i := 0; i < cv.n; i++ {
		x[i] = out[offset+i] * scale
	}
}

func reflectIndex(i, n int) int {
	if i < 0 {
		i = -i
	}
	if i >= n {
		i = 2*n - 2 - i
	}
	if i < 0 {
		i = 0
	}
	return i
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
