package gpu

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phyloeval/phyloeval"
)

func twoStateEigen() (u, uInv, lambda []float64) {
	return []float64{1, 1, 1, -1}, []float64{0.5, 0.5, 0.5, -0.5}, []float64{0, -2}
}

func twoStateP(t float64) (p, q float64) {
	e := math.Exp(-2 * t)
	return 0.5 + 0.5*e, 0.5 - 0.5*e
}

func jcSizing() phyloeval.Sizing {
	return phyloeval.Sizing{
		StateCount:          2,
		PatternCount:        1,
		CategoryCount:       1,
		TipCount:            2,
		PartialsBufferCount: 3,
		CompactBufferCount:  2,
		EigenBufferCount:    1,
		MatrixBufferCount:   2,
	}
}

func TestBackend_IsAsynchronous(t *testing.T) {
	b := New()
	defer b.Finalize()
	assert.False(t, b.Synchronous())
	assert.True(t, b.EffectiveFlags().Has(phyloeval.FlagSyncAsynchronous))
}

func TestBackend_WaitForPartials_BlocksUntilStreamDrains(t *testing.T) {
	b := New()
	defer b.Finalize()
	require.NoError(t, b.CreateBuffers(jcSizing()))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))
	require.NoError(t, b.SetCategoryRates([]float64{1.0}))
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))

	const tBranch = 0.3
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{tBranch, tBranch}))
	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))

	require.NoError(t, b.WaitForPartials([]int{2}))

	roots := []phyloeval.RootBuffer{
		{RootIndex: 2, Weights: []float64{1.0}, Freqs: []float64{0.5, 0.5}},
	}
	outSiteLogL := make([]float64, 1)
	require.NoError(t, b.CalculateRootLogLikelihoods(roots, outSiteLogL))

	p, q := twoStateP(tBranch)
	want := math.Log(p * q)
	if diff := math.Abs(want - outSiteLogL[0]); diff > 1e-9 {
		t.Errorf("logL: got %v, want %v (diff %v)", outSiteLogL[0], want, diff)
	}
}

// TestBackend_MultiCategoryRootLogLikelihoodMatchesClosedForm exercises the
// rate-heterogeneity path through the async stream: with a symmetric
// two-state model and tips in different observed states,
// L = sum_c weights[c] * p_c * q_c, where p_c/q_c are twoStateP evaluated
// at t*rates[c].
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
	defer b.Finalize()
	require.NoError(t, b.CreateBuffers(sizing))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))

	rates := []float64{0.25, 0.5, 1.0, 2.0}
	require.NoError(t, b.SetCategoryRates(rates))
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))

	const tBranch = 0.3
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{tBranch, tBranch}))
	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))
	require.NoError(t, b.WaitForPartials([]int{2}))

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
	if diff := math.Abs(math.Log(want) - outSiteLogL[0]); diff > 1e-9 {
		t.Errorf("multi-category logL: got %v, want %v (diff %v)", outSiteLogL[0], math.Log(want), diff)
	}
}

func TestBackend_WaitForPartials_EmptyListWaitsForWholeStream(t *testing.T) {
	b := New()
	defer b.Finalize()
	require.NoError(t, b.CreateBuffers(jcSizing()))
	u, uInv, lambda := twoStateEigen()
	require.NoError(t, b.SetEigenDecomposition(0, u, uInv, lambda))
	require.NoError(t, b.SetCategoryRates([]float64{1.0}))
	require.NoError(t, b.SetTipStates(0, []int{0}))
	require.NoError(t, b.SetTipStates(1, []int{1}))
	require.NoError(t, b.UpdateTransitionMatrices(0, []int{0, 1}, nil, nil, []float64{0.1, 0.1}))

	ops := []phyloeval.PartialsOperation{
		{Dest: 2, Child1: 0, Child1Matrix: 0, Child2: 1, Child2Matrix: 1},
	}
	require.NoError(t, b.UpdatePartials(ops, false))
	require.NoError(t, b.WaitForPartials(nil))

	out := make([]float64, 2)
	require.NoError(t, b.GetPartials(2, out))
	assert.NotEqual(t, []float64{0, 0}, out)
}

func TestBackend_FinalizeStopsTheWorker(t *testing.T) {
	b := New()
	require.NoError(t, b.CreateBuffers(jcSizing()))
	done := make(chan struct{})
	go func() {
		require.NoError(t, b.Finalize())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Finalize did not return; worker goroutine likely stuck")
	}
}
