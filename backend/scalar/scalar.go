// Package scalar provides the reference double-precision CPU engine for the
// phyloeval kernels. It favors clarity over throughput: every kernel is a
// plain nested loop over categories, patterns, and states. See
// backend/vector for a gonum/mat-backed engine that vectorizes the same
// math.
package scalar

import (
	"golang.org/x/sync/errgroup"

	"github.com/phyloeval/phyloeval"
)

// Backend is the reference scalar CPU engine. It is synchronous: every
// Backend method completes before returning, so WaitForPartials is a no-op.
type Backend struct {
	sizing phyloeval.Sizing

	partials [][]float64 // [bufferIndex][c*P*S + p*S + s]
	matrices [][]float64 // [matrixIndex][c*S*S + s*S + sp]

	eigenU     [][]float64 // [eigenIndex][s*S+sp]
	eigenUInv  [][]float64
	eigenVals  [][]float64

	rates []float64 // length C

	tipStates   [][]int // [tipIndex][p], only populated for compact indices
	isCompact   []bool  // [bufferIndex], meaningful only for idx < TipCount

	scaling map[int][]float64 // [scalingIndex][p], lazily allocated
}

// New constructs a not-yet-allocated scalar Backend.
func New() *Backend { return &Backend{} }

// CreateBuffers allocates the partials, transition-matrix and eigen buffer
// pools up front. Tip-state arrays are allocated by each SetTipStates call
// and scaling-factor buffers on first use by a rescaling UpdatePartials;
// neither is allocated here.
func (b *Backend) CreateBuffers(sizing phyloeval.Sizing) error {
	b.sizing = sizing

	b.partials = make([][]float64, sizing.PartialsBufferCount)
	b.matrices = make([][]float64, sizing.MatrixBufferCount)
	b.eigenU = make([][]float64, sizing.EigenBufferCount)
	b.eigenUInv = make([][]float64, sizing.EigenBufferCount)
	b.eigenVals = make([][]float64, sizing.EigenBufferCount)

	// The three buffer pools are independent allocations; fan them out
	// concurrently rather than allocating sequentially.
	var g errgroup.Group
	g.Go(func() error {
		for i := range b.partials {
			b.partials[i] = make([]float64, sizing.PartialsLength())
		}
		return nil
	})
	g.Go(func() error {
		for i := range b.matrices {
			b.matrices[i] = make([]float64, sizing.MatrixLength())
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < sizing.EigenBufferCount; i++ {
			b.eigenU[i] = make([]float64, sizing.EigenMatrixLength())
			b.eigenUInv[i] = make([]float64, sizing.EigenMatrixLength())
			b.eigenVals[i] = make([]float64, sizing.StateCount)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	b.rates = make([]float64, sizing.CategoryCount)
	for c := range b.rates {
		b.rates[c] = 1.0
	}
	b.tipStates = make([][]int, sizing.CompactBufferCount)
	b.isCompact = make([]bool, sizing.PartialsBufferCount)
	b.scaling = make(map[int][]float64)
	return nil
}

func (b *Backend) Synchronous() bool { return true }

func (b *Backend) EffectiveFlags() phyloeval.Flag {
	return phyloeval.FlagPrecisionDouble | phyloeval.FlagSyncSynchronous | phyloeval.FlagDeviceCPU
}

func (b *Backend) SetPartials(bufferIndex int, in []float64) error {
	copy(b.partials[bufferIndex], in)
	if bufferIndex < len(b.isCompact) {
		b.isCompact[bufferIndex] = false
	}
	return nil
}

func (b *Backend) GetPartials(bufferIndex int, out []float64) error {
	copy(out, b.partials[bufferIndex])
	return nil
}

func (b *Backend) SetTipStates(tipIndex int, in []int) error {
	states := make([]int, len(in))
	copy(states, in)
	b.tipStates[tipIndex] = states
	if tipIndex < len(b.isCompact) {
		b.isCompact[tipIndex] = true
	}
	return nil
}

func (b *Backend) SetEigenDecomposition(eigenIndex int, u, uInv, eigenvalues []float64) error {
	copy(b.eigenU[eigenIndex], u)
	copy(b.eigenUInv[eigenIndex], uInv)
	copy(b.eigenVals[eigenIndex], eigenvalues)
	return nil
}

func (b *Backend) SetCategoryRates(rates []float64) error {
	copy(b.rates, rates)
	return nil
}

func (b *Backend) SetTransitionMatrix(matrixIndex int, in []float64) error {
	copy(b.matrices[matrixIndex], in)
	return nil
}

func (b *Backend) GetLogScaleFactors(scalingIndex int, out []float64) error {
	factors, ok := b.scaling[scalingIndex]
	if !ok {
		for i := range out {
			out[i] = 0
		}
		return nil
	}
	copy(out, factors)
	return nil
}

func (b *Backend) Finalize() error {
	*b = Backend{}
	return nil
}

func (b *Backend) matIndex(c, s, sp int) int {
	S := b.sizing.StateCount
	return c*S*S + s*S + sp
}

func (b *Backend) partialIndex(c, p, s int) int {
	P, S := b.sizing.PatternCount, b.sizing.StateCount
	return c*P*S + p*S + s
}

// childIsCompact reports whether buffer index idx currently holds a compact
// tip-state representation rather than a partials representation. Only
// indices below tipCount can ever be compact; which representation is
// actually live there tracks whichever setter wrote it most recently.
func (b *Backend) childIsCompact(idx int) bool {
	return idx < b.sizing.TipCount && idx < len(b.isCompact) && b.isCompact[idx]
}

