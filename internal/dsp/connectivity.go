package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WPLI computes the weighted phase-lag index between every channel pair,
// averaged over the [fmin, fmax] band. Epochs are laid out
// [epoch][channel][sample]; the epochs are the observations the index is
// estimated across. The result is a symmetric matrix with zeros on the
// diagonal; values range from 0 (no consistent phase lag) to 1.
func WPLI(epochs [][][]float64, rate, fmin, fmax float64) ([][]float64, error) {
	if len(epochs) == 0 {
		return nil, fmt.Errorf("no epochs for connectivity")
	}
	nch := len(epochs[0])
	if nch < 2 {
		return nil, fmt.Errorf("connectivity needs at least 2 channels, have %d", nch)
	}
	n := len(epochs[0][0])
	if fmin <= 0 || fmax <= fmin {
		return nil, fmt.Errorf("invalid frequency band [%g, %g]", fmin, fmax)
	}
	if fmax >= rate/2 {
		return nil, fmt.Errorf("band edge %g Hz is at or above Nyquist (%g Hz)", fmax, rate/2)
	}

	// Band bins for an n-point spectrum.
	df := rate / float64(n)
	var bins []int
	for k := 1; k <= n/2; k++ {
		if f := float64(k) * df; f >= fmin && f <= fmax {
			bins = append(bins, k)
		}
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("band [%g, %g] Hz contains no spectral bins at %.2f Hz resolution",
			fmin, fmax, df)
	}

	win := window.Hann(ones(n))
	fft := fourier.NewFFT(n)
	buf := make([]float64, n)

	// Per-epoch, per-channel spectra at the band bins.
	spectra := make([][][]complex128, len(epochs))
	for e, epoch := range epochs {
		if len(epoch) != nch {
			return nil, fmt.Errorf("epoch %d has %d channels, expected %d", e, len(epoch), nch)
		}
		spectra[e] = make([][]complex128, nch)
		for c, row := range epoch {
			if len(row) != n {
				return nil, fmt.Errorf("epochs have unequal lengths")
			}
			for i, v := range row {
				buf[i] = v * win[i]
			}
			coeff := fft.Coefficients(nil, buf)
			sel := make([]complex128, len(bins))
			for bi, k := range bins {
				sel[bi] = coeff[k]
			}
			spectra[e][c] = sel
		}
	}

	matrix := make([][]float64, nch)
	for i := range matrix {
		matrix[i] = make([]float64, nch)
	}
	for i := 0; i < nch; i++ {
		for j := i + 1; j < nch; j++ {
			var bandSum float64
			for bi := range bins {
				var num, den float64
				for e := range spectra {
					si := spectra[e][i][bi]
					sj := spectra[e][j][bi]
					// Imaginary part of the cross-spectrum S_i·conj(S_j).
					im := imag(si)*real(sj) - real(si)*imag(sj)
					num += im
					den += math.Abs(im)
				}
				if den > 1e-30 {
					bandSum += math.Abs(num) / den
				}
			}
			v := bandSum / float64(len(bins))
			matrix[i][j] = v
			matrix[j][i] = v
		}
	}
	return matrix, nil
}
