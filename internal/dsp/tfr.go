package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// MorletPower computes complex Morlet wavelet power for one channel's
// epochs ([epoch][sample]) at the given frequencies and averages the
// power across epochs. cycles[i] sets the wavelet width at freqs[i];
// wider wavelets trade time resolution for frequency resolution. The
// result is laid out [frequency][sample].
func MorletPower(epochs [][]float64, rate float64, freqs, cycles []float64) ([][]float64, error) {
	if len(epochs) == 0 || len(epochs[0]) == 0 {
		return nil, fmt.Errorf("no epochs for time-frequency analysis")
	}
	if len(freqs) == 0 || len(freqs) != len(cycles) {
		return nil, fmt.Errorf("mismatched frequency and cycle lists")
	}
	n := len(epochs[0])

	power := make([][]float64, len(freqs))
	for fi, f := range freqs {
		if f <= 0 || f >= rate/2 {
			return nil, fmt.Errorf("frequency %g Hz outside (0, Nyquist)", f)
		}
		wavelet := morletWavelet(f, cycles[fi], rate)
		if len(wavelet) > n {
			return nil, fmt.Errorf("epochs too short for %g Hz at %g cycles (need %d samples, have %d)",
				f, cycles[fi], len(wavelet), n)
		}
		row, err := waveletPower(epochs, wavelet)
		if err != nil {
			return nil, err
		}
		power[fi] = row
	}
	return power, nil
}

// morletWavelet builds an L2-normalized complex Morlet wavelet of odd
// length, truncated at 3.5 standard deviations of its Gaussian envelope.
func morletWavelet(freq, cycles, rate float64) []complex128 {
	sigma := cycles / (2 * math.Pi * freq)
	half := int(math.Ceil(3.5 * sigma * rate))
	if half < 1 {
		half = 1
	}
	w := make([]complex128, 2*half+1)
	var norm float64
	for i := range w {
		t := float64(i-half) / rate
		env := math.Exp(-t * t / (2 * sigma * sigma))
		re := env * math.Cos(2*math.Pi*freq*t)
		im := env * math.Sin(2*math.Pi*freq*t)
		w[i] = complex(re, im)
		norm += re*re + im*im
	}
	scale := complex(1/math.Sqrt(norm), 0)
	for i := range w {
		w[i] *= scale
	}
	return w
}

// waveletPower convolves every epoch with the wavelet and returns the
// squared magnitude averaged across epochs, aligned to the epoch samples.
func waveletPower(epochs [][]float64, wavelet []complex128) ([]float64, error) {
	n := len(epochs[0])
	half := (len(wavelet) - 1) / 2
	nfft := nextPow2(n + len(wavelet) - 1)
	fft := fourier.NewCmplxFFT(nfft)

	wbuf := make([]complex128, nfft)
	copy(wbuf, wavelet)
	wfreq := fft.Coefficients(nil, wbuf)

	xbuf := make([]complex128, nfft)
	acc := make([]float64, n)
	for _, epoch := range epochs {
		if len(epoch) != n {
			return nil, fmt.Errorf("epochs have unequal lengths")
		}
		for i := range xbuf {
			xbuf[i] = 0
		}
		for i, v := range epoch {
			xbuf[i] = complex(v, 0)
		}
		xfreq := fft.Coefficients(nil, xbuf)
		for i := range xfreq {
			xfreq[i] *= wfreq[i]
		}
		out := fft.Sequence(nil, xfreq)
		scale := 1 / float64(nfft)
		for s := 0; s < n; s++ {
			v := out[s+half] * complex(scale, 0)
			m := cmplx.Abs(v)
			acc[s] += m * m
		}
	}
	for s := range acc {
		acc[s] /= float64(len(epochs))
	}
	return acc, nil
}

// FrequencyRange returns integer-spaced frequencies from fmin to fmax
// inclusive, with the half-frequency cycle counts the TFR view uses.
func FrequencyRange(fmin, fmax float64) (freqs, cycles []float64, err error) {
	if fmin <= 0 || fmax < fmin {
		return nil, nil, fmt.Errorf("invalid frequency range [%g, %g]", fmin, fmax)
	}
	for f := fmin; f <= fmax+1e-9; f += 1.0 {
		freqs = append(freqs, f)
		cycles = append(cycles, f/2)
	}
	return freqs, cycles, nil
}
