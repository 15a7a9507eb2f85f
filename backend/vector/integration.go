package vector

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/phyloeval/phyloeval"
)

// CalculateRootLogLikelihoods computes per-root, per-pattern likelihoods via
// a weights·partials dot product per state, matching backend/scalar's
// semantics through gonum/mat.VecDense dot products instead of explicit
// category loops.
func (b *Backend) CalculateRootLogLikelihoods(roots []phyloeval.RootBuffer, outSiteLogL []float64) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount

	for p := range outSiteLogL {
		outSiteLogL[p] = 0
	}
	catVec := mat.NewVecDense(C, nil)

	for _, root := range roots {
		weightVec := mat.NewVecDense(C, root.Weights)
		for p := 0; p < P; p++ {
			var lik float64
			for s := 0; s < S; s++ {
				for c := 0; c < C; c++ {
					catVec.SetVec(c, b.partials[root.RootIndex][c*P*S+p*S+s])
				}
				lik += root.Freqs[s] * mat.Dot(weightVec, catVec)
			}
			logL := logOf(lik)
			for _, si := range root.ScalingIndices {
				if factors, ok := b.scaling[si]; ok {
					logL += factors[p]
				}
			}
			outSiteLogL[p] += logL
		}
	}
	return nil
}

// CalculateEdgeLogLikelihoods mirrors backend/scalar's semantics, inserting
// the edge's transition (and derivative) matrices between parent and child
// partials.
func (b *Backend) CalculateEdgeLogLikelihoods(edges []phyloeval.EdgeBuffer, weights, freqs []float64, scalingIndices []int, outL, outD1, outD2 []float64) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount
	missing := b.sizing.MissingSentinel()

	for p := range outL {
		outL[p] = 0
	}
	wantD1 := outD1 != nil
	wantD2 := outD2 != nil
	if wantD1 {
		for p := range outD1 {
			outD1[p] = 0
		}
	}
	if wantD2 {
		for p := range outD2 {
			outD2[p] = 0
		}
	}

	for p := 0; p < P; p++ {
		var lik, d1lik, d2lik float64
		for _, edge := range edges {
			compactChild := b.childIsCompact(edge.ChildIndex)
			var childStates []int
			if compactChild {
				childStates = b.tipStates[edge.ChildIndex]
			}
			for c := 0; c < C; c++ {
				M := mat.NewDense(S, S, b.matrixCategorySlice(edge.Matrix, c))
				var D1, D2 *mat.Dense
				if edge.D1Matrix >= 0 {
					D1 = mat.NewDense(S, S, b.matrixCategorySlice(edge.D1Matrix, c))
				}
				if edge.D2Matrix >= 0 {
					D2 = mat.NewDense(S, S, b.matrixCategorySlice(edge.D2Matrix, c))
				}
				var contrib, contrib1, contrib2 []float64
				if compactChild {
					contrib = compactRow(M, S, childStates[p], missing)
					if D1 != nil {
						contrib1 = compactRow(D1, S, childStates[p], missing)
					}
					if D2 != nil {
						contrib2 = compactRow(D2, S, childStates[p], missing)
					}
				} else {
					childVec := mat.NewVecDense(S, b.partialsCategorySlice(edge.ChildIndex, c)[p*S:p*S+S])
					v := mat.NewVecDense(S, nil)
					v.MulVec(M, childVec)
					contrib = append([]float64(nil), v.RawVector().Data...)
					if D1 != nil {
						v.MulVec(D1, childVec)
						contrib1 = append([]float64(nil), v.RawVector().Data...)
					}
					if D2 != nil {
						v.MulVec(D2, childVec)
						contrib2 = append([]float64(nil), v.RawVector().Data...)
					}
				}
				parentSlice := b.partialsCategorySlice(edge.ParentIndex, c)[p*S : p*S+S]
				for s := 0; s < S; s++ {
					pv := parentSlice[s]
					lik += freqs[s] * weights[c] * pv * contrib[s]
					if contrib1 != nil {
						d1lik += freqs[s] * weights[c] * pv * contrib1[s]
					}
					if contrib2 != nil {
						d2lik += freqs[s] * weights[c] * pv * contrib2[s]
					}
				}
			}
		}
		logL := logOf(lik)
		for _, si := range scalingIndices {
			if factors, ok := b.scaling[si]; ok {
				logL += factors[p]
			}
		}
		outL[p] += logL
		if wantD1 {
			outD1[p] += d1lik / lik
		}
		if wantD2 {
			ratio := d1lik / lik
			outD2[p] += d2lik/lik - ratio*ratio
		}
	}
	return nil
}

func logOf(x float64) float64 {
	if x <= 0 {
		return -1e300
	}
	return math.Log(x)
}
