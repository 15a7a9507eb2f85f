package scalar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phyloeval/phyloeval"
	"github.com/phyloeval/phyloeval/internal/testutil"
)

// twoStateEigen returns the eigensystem of the symmetric two-state model
// Q = [[-1,1],[1,-1]]: U = [[1,1],[1,-1]], U^-1 = [[0.5,0.5],[0.5,-0.5]],
// lambda = [0,-2]. Its closed form is P(t) = [[p,q],[q,p]] with
// p = 0.5+0.5e^(-2t), q = 0.5-0.5e^(-2t), which every test below uses as an
// independently-derived reference.
func twoStateEigen() (u, uInv, lambda []float64) {
	return []float64{1, 1, 1, -1}, []float64{0.5, 0.5, 0.5, -0.5}, []float64{0, -2}
}

func twoStateP(t float64) (p, q float64) {
	e := math.Exp(-2 * t)
	return 0.5 + 0.5*e, 0.5 - 0.5*e
}

func jcSizing(patternCount int) phyloeval.Sizing {
	return phyloeval.Sizing{
		StateCount:          2,
		PatternCount:        patternCount,
		CategoryCount:       1,
		TipCount:            2,
		PartialsBufferCount: 3,
		CompactBufferCount:  2,
		EigenBufferCount:    1,
		MatrixBufferCount:   2,
	}
}

func newReadyBackend(t *testing.T, sizing phyloeval.Sizing) *Backend {
	t.Helper()
	b := New()
	require.NoError(t, b.CreateBuffers(sizing))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))
	require.NoError(t, b.SetCategoryRates([]float64{1.0}))
	return b
}

func TestBackend_UpdateTransitionMatrices_IsRowStochastic(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0}, nil, nil, []float64{0.37}))

	m := make([]float64, 4)
	copy(m, b.matrices[0])
	testutil.AssertRowStochastic(t, "P(0.37)", m, 2, 1e-9)
}

func TestBackend_ZeroBranchLengthIsIdentity(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0}, nil, nil, []float64{0}))

	testutil.AssertClose(t, "P[0][0]", 1, b.matrices[0][0], 1e-12)
	testutil.AssertClose(t, "P[0][1]", 0, b.matrices[0][1], 1e-12)
	testutil.AssertClose(t, "P[1][0]", 0, b.matrices[0][2], 1e-12)
	testutil.AssertClose(t, "P[1][1]", 1, b.matrices[0][3], 1e-12)
}

func TestBackend_UpdateTransitionMatrices_MatchesClosedForm(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	const tBranch = 0.42
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0}, nil, nil, []float64{tBranch}))

	p, q := twoStateP(tBranch)
	testutil.AssertClose(t, "P[0][0]", p, b.matrices[0][0], 1e-12)
	testutil.AssertClose(t, "P[0][1]", q, b.matrices[0][1], 1e-12)
	testutil.AssertClose(t, "P[1][0]", q, b.matrices[0][2], 1e-12)
	testutil.AssertClose(t, "P[1][1]", p, b.matrices[0][3], 1e-12)
}

func TestBackend_CompactTipAndOneHotPartialsAgree(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{0.25, 0.25}))

	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))
	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))
	compactResult := make([]float64, 2)
	copy(compactResult, b.partials[2])

	b2 := newReadyBackend(t, jcSizing(1))
	require.NoError(t, b2.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{0.25, 0.25}))
	require.NoError(t, b2.SetPartials(0, []float64{1, 0}))
	require.NoError(t, b2.SetPartials(1, []float64{0, 1}))
	require.NoError(t, b2.UpdatePartials(ops, false))

	testutil.AssertClose(t, "partials[2][0]", b2.partials[2][0], compactResult[0], 1e-12)
	testutil.AssertClose(t, "partials[2][1]", b2.partials[2][1], compactResult[1], 1e-12)
}

func TestBackend_TwoTipTreeLogLikelihoodMatchesClosedForm(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	const tBranch = 0.3
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{tBranch, tBranch}))

	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))

	roots := []phyloeval.RootBuffer{
		{RootIndex: 2, Weights: []float64{1.0}, Freqs: []float64{0.5, 0.5}},
	}
	outSiteLogL := make([]float64, 1)
	require.NoError(t, b.CalculateRootLogLikelihoods(roots, outSiteLogL))

	p, q := twoStateP(tBranch)
	want := math.Log(p * q)
	testutil.AssertClose(t, "logL", want, outSiteLogL[0], 1e-9)
}

// TestBackend_MultiCategoryRootLogLikelihoodMatchesClosedForm exercises the
// rate-heterogeneity path (C>1) that every other test in this file leaves
// untouched: with a symmetric two-state model and tips in different
// observed states, the per-category contributions at the root reduce to
// L = sum_c weights[c] * p_c * q_c, where p_c/q_c are twoStateP evaluated at
// t*rates[c].
func TestBackend_MultiCategoryRootLogLikelihoodMatchesClosedForm(t *testing.T) {
	sizing := phyloeval.Sizing{
		StateCount:          2,
		PatternCount:        1,
		CategoryCount:       4,
		TipCount:            2,
		PartialsBufferCount: 3,
		CompactBufferCount:  2,
		EigenBufferCount:    1,
		MatrixBufferCount:   2,
	}
	b := New()
	require.NoError(t, b.CreateBuffers(sizing))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))

	rates := []float64{0.25, 0.5, 1.0, 2.0}
	require.NoError(t, b.SetCategoryRates(rates))

	const tBranch = 0.3
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{tBranch, tBranch}))

	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))

	weights := []float64{0.25, 0.25, 0.25, 0.25}
	roots := []phyloeval.RootBuffer{
		{RootIndex: 2, Weights: weights, Freqs: []float64{0.5, 0.5}},
	}
	outSiteLogL := make([]float64, 1)
	require.NoError(t, b.CalculateRootLogLikelihoods(roots, outSiteLogL))

	var want float64
	for c, rate := range rates {
		p, q := twoStateP(tBranch * rate)
		want += weights[c] * p * q
	}
	testutil.AssertClose(t, "multi-category logL", math.Log(want), outSiteLogL[0], 1e-9)
}

func TestBackend_RescalingIsLikelihoodInvariant(t *testing.T) {
	unscaled := newReadyBackend(t, jcSizing(1))
	scaled := newReadyBackend(t, jcSizing(1))

	for _, b := range []*Backend{unscaled, scaled} {
		require.NoError(t, b.SetTipStates(0, []int{0}))
		require.NoError(t, b.SetTipStates(1, []int{1}))
		require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{2.5, 2.5}))
	}

	ops := []phyloeval.PartialsOperation{
		{Dest: 2, DestScaling: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, unscaled.UpdatePartials(ops, false))
	require.NoError(t, scaled.UpdatePartials(ops, true))

	roots := []phyloeval.RootBuffer{
		{RootIndex: 2, Weights: []float64{1.0}, Freqs: []float64{0.5, 0.5}},
	}
	unscaledLogL := make([]float64, 1)
	require.NoError(t, unscaled.CalculateRootLogLikelihoods(roots, unscaledLogL))

	scaledRoots := []phyloeval.RootBuffer{
		{RootIndex: 2, Weights: []float64{1.0}, Freqs: []float64{0.5, 0.5}, ScalingIndices: []int{2}},
	}
	scaledLogL := make([]float64, 1)
	require.NoError(t, scaled.CalculateRootLogLikelihoods(scaledRoots, scaledLogL))

	testutil.AssertClose(t, "logL", unscaledLogL[0], scaledLogL[0], 1e-9)
}

func TestBackend_AmbiguousTipSumsOverStates(t *testing.T) {
	b := newReadyBackend(t, jcSizing(1))
	missing := b.sizing.MissingSentinel()
	require.NoError(t, b.SetTipStates(0, []int{missing}))
	require.NoError(t, b.SetTipStates(1, []int{1}))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{0.3, 0.3}))

	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))

	// An ambiguous tip contributes sum_sp M[s,sp] = 1 for every row (the
	// matrix is row-stochastic), so the dest partial reduces to the other
	// child's own contribution: dest[s] = M[s][1].
	p, q := twoStateP(0.3)
	testutil.AssertClose(t, "partials[2][0]", q, b.partials[2][0], 1e-9)
	testutil.AssertClose(t, "partials[2][1]", p, b.partials[2][1], 1e-9)
}

func TestBackend_DerivativesMatchFiniteDifference(t *testing.T) {
	const (
		tBranch = 0.4
		h       = 1e-5
	)
	weights := []float64{1.0}
	freqs := []float64{0.5, 0.5}

	logLAt := func(t0 float64) float64 {
		b := New()
		if err := b.CreateBuffers(jcSizing(1)); err != nil {
			panic(err)
		}
		u, uInv, lambda := twoStateEigen()
		if err := b.SetEigenDecomposition(0, u, uInv, lambda); err != nil {
			panic(err)
		}
		if err := b.SetCategoryRates([]float64{1.0}); err != nil {
			panic(err)
		}
		if err := b.SetPartials(2, []float64{0.6, 0.4}); err != nil {
			panic(err)
		}
		if err := b.SetTipStates(0, []int{0}); err != nil {
			panic(err)
		}
		if err := b.UpdateTransitionMatrices(0, []int{0}, nil, nil, []float64{t0}); err != nil {
			panic(err)
		}
		edges := []phyloeval.EdgeBuffer{{ParentIndex: 2, ChildIndex: 0, Matrix: 0, D1Matrix: -1, D2Matrix: -1}}
		outL := make([]float64, 1)
		if err := b.CalculateEdgeLogLikelihoods(edges, weights, freqs, nil, outL, nil, nil); err != nil {
			panic(err)
		}
		return outL[0]
	}

	finiteD1 := (logLAt(tBranch+h) - logLAt(tBranch-h)) / (2 * h)

	b := New()
	require.NoError(t, b.CreateBuffers(jcSizing(1)))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))
	require.NoError(t, b.SetCategoryRates([]float64{1.0}))
	require.NoError(t, b.SetPartials(2, []float64{0.6, 0.4}))
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0}, []int{1}, nil, []float64{tBranch}))

	edges := []phyloeval.EdgeBuffer{{ParentIndex: 2, ChildIndex: 0, Matrix: 0, D1Matrix: 1, D2Matrix: -1}}
	outL := make([]float64, 1)
	outD1 := make([]float64, 1)
	require.NoError(t, b.CalculateEdgeLogLikelihoods(edges, weights, freqs, nil, outL, outD1, nil))

	testutil.AssertClose(t, "d(logL)/dt", finiteD1, outD1[0], 1e-5)
}

func TestBackend_IndexOutOfRangeIsRejectedByKernel(t *testing.T) {
	// checkPartialsIndex etc. are phyloeval-side guards; the backend itself
	// trusts the caller, per the Backend interface doc comment. This test
	// confirms that trust boundary by showing the backend panics on a
	// clearly out-of-range index rather than silently succeeding, so a
	// caller bug surfaces immediately instead of corrupting memory
	// silently.
	b := newReadyBackend(t, jcSizing(1))
	assert.Panics(t, func() {
		_ = b.SetPartials(99, []float64{1, 0})
	})
}
