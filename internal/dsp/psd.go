package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// PSD is a power spectral density estimate, one row per channel, in
// signal-units squared per Hz.
type PSD struct {
	Freqs []float64
	Power [][]float64 // [channel][freq]
}

// Mean returns the density averaged across channels.
func (p *PSD) Mean() []float64 {
	out := make([]float64, len(p.Freqs))
	if len(p.Power) == 0 {
		return out
	}
	for _, row := range p.Power {
		for i, v := range row {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= float64(len(p.Power))
	}
	return out
}

// welchSegment is the preferred Welch segment length in samples.
const welchSegment = 2048

// Welch estimates the PSD of every row using Hamming-windowed segments
// of up to 2048 samples without overlap, keeping frequencies up to fmax.
// A non-positive fmax keeps the full one-sided spectrum.
func Welch(data [][]float64, rate float64, fmax float64) (*PSD, error) {
	if len(data) == 0 || len(data[0]) == 0 {
		return nil, fmt.Errorf("no data for spectral estimation")
	}
	n := len(data[0])
	nseg := welchSegment
	if nseg > n {
		nseg = n
	}

	win := window.Hamming(ones(nseg))
	var winPower float64
	for _, w := range win {
		winPower += w * w
	}

	nbins := nseg/2 + 1
	keep := nbins
	freqs := make([]float64, 0, nbins)
	for k := 0; k < nbins; k++ {
		f := float64(k) * rate / float64(nseg)
		if fmax > 0 && f > fmax {
			keep = k
			break
		}
		freqs = append(freqs, f)
	}

	fft := fourier.NewFFT(nseg)
	buf := make([]float64, nseg)
	coeff := make([]complex128, nbins)

	power := make([][]float64, len(data))
	for c, row := range data {
		acc := make([]float64, keep)
		segments := 0
		for start := 0; start+nseg <= n; start += nseg {
			for i := 0; i < nseg; i++ {
				buf[i] = row[start+i] * win[i]
			}
			fft.Coefficients(coeff, buf)
			for k := 0; k < keep; k++ {
				m := real(coeff[k])*real(coeff[k]) + imag(coeff[k])*imag(coeff[k])
				// One-sided density: double everything except DC and
				// the Nyquist bin.
				if k > 0 && k < nseg/2 {
					m *= 2
				}
				acc[k] += m / (rate * winPower)
			}
			segments++
		}
		for k := range acc {
			acc[k] /= float64(segments)
		}
		power[c] = acc
	}

	return &PSD{Freqs: freqs, Power: power}, nil
}

// PeakFrequency returns the frequency with the highest mean power,
// ignoring bins below minFreq. Used by the self-check tool.
func (p *PSD) PeakFrequency(minFreq float64) float64 {
	mean := p.Mean()
	best := -1
	bestVal := math.Inf(-1)
	for i, f := range p.Freqs {
		if f < minFreq {
			continue
		}
		if mean[i] > bestVal {
			bestVal = mean[i]
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return p.Freqs[best]
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
