package scalar

import "math"

// maxExpArg bounds the exponent passed to math.Exp so that a misbehaved or
// adversarial eigenvalue/rate/edge-length combination saturates to a large
// finite value instead of producing +Inf or NaN.
const maxExpArg = 700.0

func clampedExp(x float64) float64 {
	if x > maxExpArg {
		x = maxExpArg
	}
	if x < -maxExpArg {
		return 0
	}
	return math.Exp(x)
}

// UpdateTransitionMatrices computes M_i[c] = U*diag(exp(lambda*t_i*rate_c))*U^-1
// for every i in [0,k) and category c, and optionally its first and second
// derivatives with respect to t_i, reusing the shared eigen-exponential
// product across the three.
func (b *Backend) UpdateTransitionMatrices(eigenIndex int, probIdx, d1Idx, d2Idx []int, edgeLengths []float64) error {
	S := b.sizing.StateCount
	C := b.sizing.CategoryCount
	U := b.eigenU[eigenIndex]
	UInv := b.eigenUInv[eigenIndex]
	lambda := b.eigenVals[eigenIndex]

	ex := make([]float64, S)
	exD1 := make([]float64, S)
	exD2 := make([]float64, S)

	for i, t := range edgeLengths {
		dest := b.matrices[probIdx[i]]
		var d1dest, d2dest []float64
		if d1Idx != nil {
			d1dest = b.matrices[d1Idx[i]]
		}
		if d2Idx != nil {
			d2dest = b.matrices[d2Idx[i]]
		}
		for c := 0; c < C; c++ {
			rate := b.rates[c]
			for x := 0; x < S; x++ {
				arg := lambda[x] * t * rate
				e := clampedExp(arg)
				ex[x] = e
				lr := lambda[x] * rate
				exD1[x] = lr * e
				exD2[x] = lr * lr * e
			}
			for s := 0; s < S; s++ {
				for sp := 0; sp < S; sp++ {
					idx := b.matIndex(c, s, sp)
					var m, d1, d2 float64
					for x := 0; x < S; x++ {
						uxs := U[s*S+x]
						if uxs == 0 {
							continue
						}
						uinvxsp := UInv[x*S+sp]
						m += uxs * ex[x] * uinvxsp
						if d1dest != nil {
							d1 += uxs * exD1[x] * uinvxsp
						}
						if d2dest != nil {
							d2 += uxs * exD2[x] * uinvxsp
						}
					}
					dest[idx] = m
					if d1dest != nil {
						d1dest[idx] = d1
					}
					if d2dest != nil {
						d2dest[idx] = d2
					}
				}
			}
		}
	}
	return nil
}
