package scalar

import (
	"math"

	"github.com/phyloeval/phyloeval"
)

// CalculateRootLogLikelihoods computes, for each root buffer i,
// L_p^(i) = sum_s freqs[i,s] * sum_c weights[i,c] * partials[rootIdx[i]][c,p,s],
// adds back the accumulated scaling corrections for i, and sums
// log(L_p^(i)) across i into outSiteLogL[p].
func (b *Backend) CalculateRootLogLikelihoods(roots []phyloeval.RootBuffer, outSiteLogL []float64) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount

	for p := range outSiteLogL {
		outSiteLogL[p] = 0
	}
	for _, root := range roots {
		partials := b.partials[root.RootIndex]
		for p := 0; p < P; p++ {
			var lik float64
			for s := 0; s < S; s++ {
				var catSum float64
				for c := 0; c < C; c++ {
					catSum += root.Weights[c] * partials[b.partialIndex(c, p, s)]
				}
				lik += root.Freqs[s] * catSum
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

// CalculateEdgeLogLikelihoods computes, for each edge buffer,
// L_p = sum_s freqs[s] * sum_c weights[c] * parent[c,p,s] * sum_sp M[c,s,sp]*child[c,p,sp],
// summed over edges, with outD1/outD2 substituting the first/second
// derivative matrices for M where requested.
func (b *Backend) CalculateEdgeLogLikelihoods(edges []phyloeval.EdgeBuffer, weights, freqs []float64, scalingIndices []int, outL, outD1, outD2 []float64) error {
	S := b.sizing.StateCount
	P := b.sizing.PatternCount
	C := b.sizing.CategoryCount

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

	// dL/dt = sum_s freqs[s] sum_c weights[c] parent[c,p,s] sum_sp dM/dt[c,s,sp] child[c,p,sp]
	// so derivative "site likelihoods" (pre-log) are accumulated the same way as L, then
	// logL's derivative is (dLik/dt)/Lik; second derivative via the quotient rule.
	for p := 0; p < P; p++ {
		var lik, d1lik, d2lik float64
		for _, edge := range edges {
			parent := b.partials[edge.ParentIndex]
			child := b.partials[edge.ChildIndex]
			compactChild := b.childIsCompact(edge.ChildIndex)
			var childStates []int
			if compactChild {
				childStates = b.tipStates[edge.ChildIndex]
			}
			missing := b.sizing.MissingSentinel()
			M := b.matrices[edge.Matrix]
			var D1, D2 []float64
			if edge.D1Matrix >= 0 {
				D1 = b.matrices[edge.D1Matrix]
			}
			if edge.D2Matrix >= 0 {
				D2 = b.matrices[edge.D2Matrix]
			}
			for s := 0; s < S; s++ {
				var cSum, cSum1, cSum2 float64
				for c := 0; c < C; c++ {
					matBase := b.matIndex(c, s, 0)
					var contrib, contrib1, contrib2 float64
					if compactChild {
						contrib = compactContribution(M, matBase, S, childStates[p], missing)
						if D1 != nil {
							contrib1 = compactContribution(D1, matBase, S, childStates[p], missing)
						}
						if D2 != nil {
							contrib2 = compactContribution(D2, matBase, S, childStates[p], missing)
						}
					} else {
						pb := b.partialIndex(c, p, 0)
						contrib = partialsContribution(M, matBase, S, child, pb)
						if D1 != nil {
							contrib1 = partialsContribution(D1, matBase, S, child, pb)
						}
						if D2 != nil {
							contrib2 = partialsContribution(D2, matBase, S, child, pb)
						}
					}
					pv := parent[b.partialIndex(c, p, s)]
					cSum += weights[c] * pv * contrib
					cSum1 += weights[c] * pv * contrib1
					cSum2 += weights[c] * pv * contrib2
				}
				lik += freqs[s] * cSum
				d1lik += freqs[s] * cSum1
				d2lik += freqs[s] * cSum2
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
			// d2(logL)/dt2 = d2lik/lik - (d1lik/lik)^2
			ratio := d1lik / lik
			outD2[p] += d2lik/lik - ratio*ratio
		}
	}
	return nil
}

// logOf returns math.Log(x) for positive x, and a large negative finite
// value for non-positive x, avoiding -Inf/NaN propagation while still
// letting callers observe "the likelihood underflowed to zero" as a very
// low but finite log-likelihood.
func logOf(x float64) float64 {
	if x <= 0 {
		return -1e300
	}
	return math.Log(x)
}
