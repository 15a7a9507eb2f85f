package scalar

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/phyloeval/phyloeval"
)

// UpdatePartials executes the Felsenstein peeling recursion for each
// operation in ops, in order, optionally rescaling each destination
// pattern's state vector to its maximum and accumulating the log scaler
// into the associated scaling-factor buffer.
func (b *Backend) UpdatePartials(ops []phyloeval.PartialsOperation, rescale bool) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount
	missing := b.sizing.MissingSentinel()

	for _, op := range ops {
		dest := b.partials[op.Dest]
		m1 := b.matrices[op.Child1Matrix]
		m2 := b.matrices[op.Child2Matrix]
		compact1 := b.childIsCompact(op.Child1)
		compact2 := b.childIsCompact(op.Child2)
		var states1, states2 []int
		var child1, child2 []float64
		if compact1 {
			states1 = b.tipStates[op.Child1]
		} else {
			child1 = b.partials[op.Child1]
		}
		if compact2 {
			states2 = b.tipStates[op.Child2]
		} else {
			child2 = b.partials[op.Child2]
		}

		for c := 0; c < C; c++ {
			for p := 0; p < P; p++ {
				for s := 0; s < S; s++ {
					idx := b.matIndex(c, s, 0)
					var v1, v2 float64
					if compact1 {
						v1 = compactContribution(m1, idx, S, states1[p], missing)
					} else {
						v1 = partialsContribution(m1, idx, S, child1, b.partialIndex(c, p, 0))
					}
					if compact2 {
						v2 = compactContribution(m2, idx, S, states2[p], missing)
					} else {
						v2 = partialsContribution(m2, idx, S, child2, b.partialIndex(c, p, 0))
					}
					dest[b.partialIndex(c, p, s)] = v1 * v2
				}
			}
		}

		if rescale {
			b.rescalePattern(dest, op.DestScaling, S, P, C)
		}
	}
	return nil
}

// compactContribution returns M[c,s,state] for an observed state, or
// sum_sp M[c,s,sp] for the missing sentinel, where matBase is the flat
// offset of M[c,s,0] in matrix m and S is the state count.
func compactContribution(m []float64, matBase, S, state, missing int) float64 {
	if state != missing {
		return m[matBase+state]
	}
	var sum float64
	for sp := 0; sp < S; sp++ {
		sum += m[matBase+sp]
	}
	return sum
}

// partialsContribution returns sum_sp M[c,s,sp]*child[c,p,sp], where matBase
// is the flat offset of M[c,s,0] and partialBase is the flat offset of
// child[c,p,0].
func partialsContribution(m []float64, matBase, S int, child []float64, partialBase int) float64 {
	var sum float64
	for sp := 0; sp < S; sp++ {
		sum += m[matBase+sp] * child[partialBase+sp]
	}
	return sum
}

// rescalePattern divides dest's state vector at each pattern by its maximum
// across states and categories for that pattern, accumulating log(scaler)
// into the scaling-factor buffer identified by scalingIndex. Patterns whose
// maximum is non-positive (total underflow) are left unscaled to avoid
// propagating -Inf.
func (b *Backend) rescalePattern(dest []float64, scalingIndex, S, P, C int) {
	factors, ok := b.scaling[scalingIndex]
	if !ok {
		factors = make([]float64, P)
		b.scaling[scalingIndex] = factors
	}
	row := make([]float64, C*S)
	for p := 0; p < P; p++ {
		for c := 0; c < C; c++ {
			copy(row[c*S:c*S+S], dest[c*P*S+p*S:c*P*S+p*S+S])
		}
		max := floats.Max(row)
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

// WaitForPartials is a no-op: the scalar backend is synchronous, so every
// UpdatePartials call has already completed by the time it returns.
func (b *Backend) WaitForPartials(destIndices []int) error { return nil }
