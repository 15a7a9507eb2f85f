package vector

import "gonum.org/v1/gonum/mat"

// UpdateTransitionMatrices computes M_i[c] = U*diag(exp(lambda*t_i*rate_c))*U^-1
// via two gonum/mat.Dense products per category, instead of the scalar
// backend's explicit triple loop.
func (b *Backend) UpdateTransitionMatrices(eigenIndex int, probIdx, d1Idx, d2Idx []int, edgeLengths []float64) error {
	S := b.sizing.StateCount
	C := b.sizing.CategoryCount
	U := b.eigenU[eigenIndex]
	UInv := b.eigenUInv[eigenIndex]
	lambda := b.eigenVals[eigenIndex]

	diagVals := make([]float64, S)
	d1Vals := make([]float64, S)
	d2Vals := make([]float64, S)
	tmp := mat.NewDense(S, S, nil)
	out := mat.NewDense(S, S, nil)

	for i, t := range edgeLengths {
		for c := 0; c < C; c++ {
			rate := b.rates[c]
			for x := 0; x < S; x++ {
				e := clampedExp(lambda[x] * t * rate)
				diagVals[x] = e
				lr := lambda[x] * rate
				d1Vals[x] = lr * e
				d2Vals[x] = lr * lr * e
			}
			writeMatrixProduct(tmp, out, U, UInv, diagVals, S, b.matrixCategorySlice(probIdx[i], c))
			if d1Idx != nil {
				writeMatrixProduct(tmp, out, U, UInv, d1Vals, S, b.matrixCategorySlice(d1Idx[i], c))
			}
			if d2Idx != nil {
				writeMatrixProduct(tmp, out, U, UInv, d2Vals, S, b.matrixCategorySlice(d2Idx[i], c))
			}
		}
	}
	return nil
}

// writeMatrixProduct computes U*diag(diagVals)*UInv into dest, reusing tmp
// and out as scratch to avoid per-call allocation.
func writeMatrixProduct(tmp, out *mat.Dense, U, UInv *mat.Dense, diagVals []float64, s int, dest []float64) {
	d := mat.NewDiagDense(s, diagVals)
	tmp.Mul(U, d)
	out.Mul(tmp, UInv)
	for r := 0; r < s; r++ {
		for col := 0; col < s; col++ {
			dest[r*s+col] = out.At(r, col)
		}
	}
}
