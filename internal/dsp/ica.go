package dsp

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ICAConfig controls FastICA fitting. Zero values fall back to the
// defaults: 200 iterations, tolerance 1e-4.
type ICAConfig struct {
	Components int
	MaxIter    int
	Tol        float64
	Seed       int64
}

// ICAModel is a fitted FastICA decomposition. Sources are recovered as
// unmixing · (x − mean); mixing maps sources back to channel space.
type ICAModel struct {
	Components int
	Converged  bool
	Iterations int

	means    []float64
	unmixing *mat.Dense // k×c
	mixing   *mat.Dense // c×k
}

// FitICA runs symmetric FastICA (logcosh contrast) on the channel data.
// Whitening is done by eigendecomposition of the channel covariance; the
// random rotation init is fully determined by cfg.Seed.
func FitICA(data [][]float64, cfg ICAConfig) (*ICAModel, error) {
	c := len(data)
	if c < 2 {
		return nil, fmt.Errorf("ICA needs at least 2 channels, have %d", c)
	}
	n := len(data[0])
	k := cfg.Components
	if k <= 0 || k > c {
		k = c
	}
	if n <= k {
		return nil, fmt.Errorf("ICA needs more samples than components (%d samples, %d components)", n, k)
	}
	maxIter := cfg.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}
	tol := cfg.Tol
	if tol <= 0 {
		tol = 1e-4
	}

	// Center the data.
	means := make([]float64, c)
	centered := mat.NewDense(c, n, nil)
	for i, row := range data {
		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(n)
		means[i] = mean
		for j, v := range row {
			centered.Set(i, j, v-mean)
		}
	}

	// Whiten: project onto the top k principal axes and rescale to unit
	// variance.
	cov := mat.NewSymDense(c, nil)
	cov.SymOuterK(1/float64(n-1), centered)
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("channel covariance factorization failed")
	}
	vals := eig.Values(nil) // ascending
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	maxVal := vals[len(vals)-1]
	if maxVal <= 0 {
		return nil, fmt.Errorf("data has no variance")
	}
	whiten := mat.NewDense(k, c, nil)   // k×c
	dewhiten := mat.NewDense(c, k, nil) // c×k
	for r := 0; r < k; r++ {
		col := len(vals) - 1 - r
		if vals[col] < 1e-12*maxVal {
			return nil, fmt.Errorf("data rank too low for %d components", k)
		}
		s := math.Sqrt(vals[col])
		for i := 0; i < c; i++ {
			whiten.Set(r, i, vecs.At(i, col)/s)
			dewhiten.Set(i, r, vecs.At(i, col)*s)
		}
	}
	z := mat.NewDense(k, n, nil)
	z.Mul(whiten, centered)

	// Deterministic random rotation as the starting point.
	rng := rand.New(rand.NewSource(cfg.Seed))
	w := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w.Set(i, j, rng.NormFloat64())
		}
	}
	if err := symmetricDecorrelate(w); err != nil {
		return nil, err
	}

	wz := mat.NewDense(k, n, nil)
	g := mat.NewDense(k, n, nil)
	e1 := mat.NewDense(k, k, nil)
	wNext := mat.NewDense(k, k, nil)
	delta := mat.NewDense(k, k, nil)

	converged := false
	iter := 0
	for ; iter < maxIter; iter++ {
		wz.Mul(w, z)
		gPrimeMean := make([]float64, k)
		for i := 0; i < k; i++ {
			var acc float64
			for j := 0; j < n; j++ {
				th := math.Tanh(wz.At(i, j))
				g.Set(i, j, th)
				acc += 1 - th*th
			}
			gPrimeMean[i] = acc / float64(n)
		}
		e1.Mul(g, z.T())
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				wNext.Set(i, j, e1.At(i, j)/float64(n)-gPrimeMean[i]*w.At(i, j))
			}
		}
		if err := symmetricDecorrelate(wNext); err != nil {
			return nil, err
		}

		delta.Mul(wNext, w.T())
		lim := 0.0
		for i := 0; i < k; i++ {
			if d := math.Abs(math.Abs(delta.At(i, i)) - 1); d > lim {
				lim = d
			}
		}
		w.Copy(wNext)
		if lim < tol {
			converged = true
			iter++
			break
		}
	}

	unmixing := mat.NewDense(k, c, nil)
	unmixing.Mul(w, whiten)
	mixing := mat.NewDense(c, k, nil)
	mixing.Mul(dewhiten, w.T())

	return &ICAModel{
		Components: k,
		Converged:  converged,
		Iterations: iter,
		means:      means,
		unmixing:   unmixing,
		mixing:     mixing,
	}, nil
}

// symmetricDecorrelate replaces m with (m mᵀ)^(-1/2) m, making its rows
// orthonormal without privileging any of them.
func symmetricDecorrelate(m *mat.Dense) error {
	k, _ := m.Dims()
	s := mat.NewSymDense(k, nil)
	s.SymOuterK(1, m)
	var eig mat.EigenSym
	if !eig.Factorize(s, true) {
		return fmt.Errorf("decorrelation factorization failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	inv := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		if vals[i] <= 0 {
			return fmt.Errorf("degenerate rotation during decorrelation")
		}
		s := 1 / math.Sqrt(vals[i])
		for r := 0; r < k; r++ {
			inv.Set(r, i, vecs.At(r, i)*s)
		}
	}
	var root mat.Dense
	root.Mul(inv, vecs.T())
	var out mat.Dense
	out.Mul(&root, m)
	m.Copy(&out)
	return nil
}

// Sources returns the component activations for the given channel data,
// one row per component.
func (m *ICAModel) Sources(data [][]float64) ([][]float64, error) {
	c := len(m.means)
	if len(data) != c {
		return nil, fmt.Errorf("model was fitted on %d channels, got %d", c, len(data))
	}
	n := len(data[0])
	centered := mat.NewDense(c, n, nil)
	for i, row := range data {
		for j, v := range row {
			centered.Set(i, j, v-m.means[i])
		}
	}
	src := mat.NewDense(m.Components, n, nil)
	src.Mul(m.unmixing, centered)

	out := make([][]float64, m.Components)
	for i := range out {
		out[i] = make([]float64, n)
		mat.Row(out[i], i, src)
	}
	return out, nil
}

// MixingColumn returns the channel weights of one component, the scalp
// pattern that component projects onto.
func (m *ICAModel) MixingColumn(comp int) ([]float64, error) {
	if comp < 0 || comp >= m.Components {
		return nil, fmt.Errorf("component index %d out of range (model has %d components)",
			comp, m.Components)
	}
	c := len(m.means)
	out := make([]float64, c)
	for i := 0; i < c; i++ {
		out[i] = m.mixing.At(i, comp)
	}
	return out, nil
}

// Remove subtracts the contribution of the excluded components from the
// channel data in place.
func (m *ICAModel) Remove(data [][]float64, excluded []int) error {
	if len(excluded) == 0 {
		return nil
	}
	seen := make(map[int]bool)
	var excl []int
	for _, i := range excluded {
		if i < 0 || i >= m.Components {
			return fmt.Errorf("component index %d out of range (model has %d components)",
				i, m.Components)
		}
		if !seen[i] {
			seen[i] = true
			excl = append(excl, i)
		}
	}
	sort.Ints(excl)

	c := len(m.means)
	if len(data) != c {
		return fmt.Errorf("model was fitted on %d channels, got %d", c, len(data))
	}
	n := len(data[0])

	centered := mat.NewDense(c, n, nil)
	for i, row := range data {
		for j, v := range row {
			centered.Set(i, j, v-m.means[i])
		}
	}

	e := len(excl)
	unmixExcl := mat.NewDense(e, c, nil)
	mixExcl := mat.NewDense(c, e, nil)
	for r, comp := range excl {
		for i := 0; i < c; i++ {
			unmixExcl.Set(r, i, m.unmixing.At(comp, i))
			mixExcl.Set(i, r, m.mixing.At(i, comp))
		}
	}

	src := mat.NewDense(e, n, nil)
	src.Mul(unmixExcl, centered)
	contrib := mat.NewDense(c, n, nil)
	contrib.Mul(mixExcl, src)

	for i := range data {
		for j := range data[i] {
			data[i][j] -= contrib.At(i, j)
		}
	}
	return nil
}
