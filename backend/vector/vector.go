// Package vector provides a dense-matrix CPU engine for the phyloeval
// kernels, backed by gonum/mat. Where backend/scalar expresses each kernel
// as a hand-rolled triple loop, backend/vector expresses the same math as
// mat.Dense products and mat.VecDense contractions, so the "vectorization"
// is BLAS-backed dense linear algebra rather than SIMD intrinsics.
package vector

import (
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/phyloeval/phyloeval"
)

// Backend is the gonum/mat-backed CPU engine. Synchronous, like
// backend/scalar.
type Backend struct {
	sizing phyloeval.Sizing

	partials [][]float64
	matrices [][]float64 // stored flat; wrapped into mat.Dense views per category on use

	eigenU    []*mat.Dense
	eigenUInv []*mat.Dense
	eigenVals [][]float64

	rates []float64

	tipStates [][]int
	isCompact []bool

	scaling map[int][]float64
}

// New constructs a not-yet-allocated vector Backend.
func New() *Backend { return &Backend{} }

func (b *Backend) CreateBuffers(sizing phyloeval.Sizing) error {
	b.sizing = sizing
	b.partials = make([][]float64, sizing.PartialsBufferCount)
	b.matrices = make([][]float64, sizing.MatrixBufferCount)
	b.eigenU = make([]*mat.Dense, sizing.EigenBufferCount)
	b.eigenUInv = make([]*mat.Dense, sizing.EigenBufferCount)
	b.eigenVals = make([][]float64, sizing.EigenBufferCount)

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
	return phyloeval.FlagPrecisionDouble | phyloeval.FlagSyncSynchronous | phyloeval.FlagDeviceCPU | phyloeval.FlagSIMDSSE
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
	S := b.sizing.StateCount
	uCopy := make([]float64, len(u))
	copy(uCopy, u)
	uInvCopy := make([]float64, len(uInv))
	copy(uInvCopy, uInv)
	b.eigenU[eigenIndex] = mat.NewDense(S, S, uCopy)
	b.eigenUInv[eigenIndex] = mat.NewDense(S, S, uInvCopy)
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

func (b *Backend) matrixCategorySlice(matrixIndex, c int) []float64 {
	S := b.sizing.StateCount
	base := c * S * S
	return b.matrices[matrixIndex][base : base+S*S]
}

func (b *Backend) partialsCategorySlice(bufferIndex, c int) []float64 {
	S, P := b.sizing.StateCount, b.sizing.PatternCount
	base := c * P * S
	return b.partials[bufferIndex][base : base+P*S]
}

func (b *Backend) childIsCompact(idx int) bool {
	return idx < b.sizing.TipCount && idx < len(b.isCompact) && b.isCompact[idx]
}

func clampedExp(x float64) float64 {
	const maxExpArg = 700.0
	if x > maxExpArg {
		x = maxExpArg
	}
	if x < -maxExpArg {
		return 0
	}
	return math.Exp(x)
}
