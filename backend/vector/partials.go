package vector

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/phyloeval/phyloeval"
)

// UpdatePartials executes the Felsenstein peeling recursion using
// mat.Dense/mat.VecDense contractions for the non-compact case, matching
// backend/scalar's semantics.
func (b *Backend) UpdatePartials(ops []phyloeval.PartialsOperation, rescale bool) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount
	missing := b.sizing.MissingSentinel()

	contribVec := mat.NewVecDense(S, nil)

	for _, op := range ops {
		dest := b.partials[op.Dest]
		compact1 := b.childIsCompact(op.Child1)
		compact2 := b.childIsCompact(op.Child2)
		var states1, states2 []int
		if compact1 {
			states1 = b.tipStates[op.Child1]
		}
		if compact2 {
			states2 = b.tipStates[op.Child2]
		}

		for c := 0; c < C; c++ {
			m1 := mat.NewDense(S, S, b.matrixCategorySlice(op.Child1Matrix, c))
			m2 := mat.NewDense(S, S, b.matrixCategorySlice(op.Child2Matrix, c))
			destSlice := b.partialsCategorySlice(op.Dest, c)
			var child1Slice, child2Slice []float64
			if !compact1 {
				child1Slice = b.partialsCategorySlice(op.Child1, c)
			}
			if !compact2 {
				child2Slice = b.partialsCategorySlice(op.Child2, c)
			}

			for p := 0; p < P; p++ {
				var contrib1, contrib2 []float64
				if compact1 {
					contrib1 = compactRow(m1, S, states1[p], missing)
				} else {
					childVec := mat.NewVecDense(S, child1Slice[p*S:p*S+S])
					contribVec.MulVec(m1, childVec)
					contrib1 = append([]float64(nil), contribVec.RawVector().Data...)
				}
				if compact2 {
					contrib2 = compactRow(m2, S, states2[p], missing)
				} else {
					childVec := mat.NewVecDense(S, child2Slice[p*S:p*S+S])
					contribVec.MulVec(m2, childVec)
					contrib2 = append([]float64(nil), contribVec.RawVector().Data...)
				}
				for s := 0; s < S; s++ {
					destSlice[p*S+s] = contrib1[s] * contrib2[s]
				}
			}
		}

		if rescale {
			b.rescalePattern(dest, op.DestScaling, S, P, C)
		}
	}
	return nil
}

// compactRow returns, for every row s of matrix m, M[s,state] (observed
// state) or sum_sp M[s,sp] (missing sentinel).
func compactRow(m *mat.Dense, S, state, missing int) []float64 {
	out := make([]float64, S)
	if state != missing {
		for s := 0; s < S; s++ {
			out[s] = m.At(s, state)
		}
		return out
	}
	for s := 0; s < S; s++ {
		var sum float64
		for sp := 0; sp < S; sp++ {
			sum += m.At(s, sp)
		}
		out[s] = sum
	}
	return out
}

// rescalePattern mirrors backend/scalar's rescalePattern: divide each
// pattern's state vector by its maximum across states and categories,
// accumulating log(scaler) into the scaling-factor buffer.
func (b *Backend) rescalePattern(dest []float64, scalingIndex, S, P, C int) {
	factors, ok := b.scaling[scalingIndex]
	if !ok {
		factors = make([]float64, P)
		b.scaling[scalingIndex] = factors
	}
	for p := 0; p < P; p++ {
		max := 0.0
		for c := 0; c < C; c++ {
			base := c*P*S + p*S
			for s := 0; s < S; s++ {
				if v := dest[base+s]; v > max {
					max = v
				}
			}
		}
		if max <= 0 || math.IsInf(max, 0) {
			continue
		}
		for c := 0; c < C; c++ {
			base := c*P*S + p*S
			for s := 0; s < S; s++ {
				dest[base+s] /= max
			}
		}
		factors[p] += math.Log(max)
	}
}

// WaitForPartials is a no-op: backend/vector is synchronous.
func (b *Backend) WaitForPartials(destIndices []int) error { return nil }
