package phyloeval

import "fmt"

// SetPartials copies inPartials (length S*P*C, category-major then
// pattern-major then state-fastest) into partials buffer bufferIndex.
func SetPartials(handle InstanceHandle, bufferIndex int, inPartials []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkPartialsIndex(bufferIndex); err != nil {
		return err
	}
	if want := st.sizing.PartialsLength(); len(inPartials) != want {
		return fmt.Errorf("phyloeval: setPartials: expected length %d, got %d: %w", want, len(inPartials), ErrGeneral)
	}
	return st.backend.SetPartials(bufferIndex, inPartials)
}

// GetPartials copies partials buffer bufferIndex into outPartials. On an
// asynchronous backend this blocks until any pending write to bufferIndex
// has completed.
func GetPartials(handle InstanceHandle, bufferIndex int, outPartials []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkPartialsIndex(bufferIndex); err != nil {
		return err
	}
	if want := st.sizing.PartialsLength(); len(outPartials) != want {
		return fmt.Errorf("phyloeval: getPartials: expected length %d, got %d: %w", want, len(outPartials), ErrGeneral)
	}
	if !st.backend.Synchronous() {
		if err := st.backend.WaitForPartials([]int{bufferIndex}); err != nil {
			return fmt.Errorf("phyloeval: getPartials: %w", err)
		}
	}
	return st.backend.GetPartials(bufferIndex, outPartials)
}

// SetTipStates copies inStates (length P, each entry in 0..S inclusive of
// the missing sentinel S) into compact tip-state buffer tipIndex.
func SetTipStates(handle InstanceHandle, tipIndex int, inStates []int) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkCompactIndex(tipIndex); err != nil {
		return err
	}
	if want := st.sizing.PatternCount; len(inStates) != want {
		return fmt.Errorf("phyloeval: setTipStates: expected length %d, got %d: %w", want, len(inStates), ErrGeneral)
	}
	missing := st.sizing.MissingSentinel()
	for i, s := range inStates {
		if s < 0 || s > missing {
			return fmt.Errorf("phyloeval: setTipStates: pattern %d state %d out of range [0,%d]: %w", i, s, missing, ErrOutOfRange)
		}
	}
	return st.backend.SetTipStates(tipIndex, inStates)
}

// SetEigenDecomposition copies U (S*S, row-major), U^-1 (S*S, row-major),
// and eigenvalues (length S) into eigen buffer eigenIndex, encoding
// Q = U*diag(eigenvalues)*U^-1.
func SetEigenDecomposition(handle InstanceHandle, eigenIndex int, u, uInv, eigenvalues []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkEigenIndex(eigenIndex); err != nil {
		return err
	}
	wantMat := st.sizing.EigenMatrixLength()
	if len(u) != wantMat {
		return fmt.Errorf("phyloeval: setEigenDecomposition: U expected length %d, got %d: %w", wantMat, len(u), ErrGeneral)
	}
	if len(uInv) != wantMat {
		return fmt.Errorf("phyloeval: setEigenDecomposition: U^-1 expected length %d, got %d: %w", wantMat, len(uInv), ErrGeneral)
	}
	if want := st.sizing.StateCount; len(eigenvalues) != want {
		return fmt.Errorf("phyloeval: setEigenDecomposition: eigenvalues expected length %d, got %d: %w", want, len(eigenvalues), ErrGeneral)
	}
	return st.backend.SetEigenDecomposition(eigenIndex, u, uInv, eigenvalues)
}

// SetCategoryRates copies rates (length C, non-negative) into the
// instance-level category-rate vector.
func SetCategoryRates(handle InstanceHandle, rates []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if want := st.sizing.CategoryCount; len(rates) != want {
		return fmt.Errorf("phyloeval: setCategoryRates: expected length %d, got %d: %w", want, len(rates), ErrGeneral)
	}
	for c, r := range rates {
		if r < 0 {
			return fmt.Errorf("phyloeval: setCategoryRates: rate[%d]=%g is negative: %w", c, r, ErrGeneral)
		}
	}
	return st.backend.SetCategoryRates(rates)
}

// SetTransitionMatrix copies inMatrix (length S*S*C, category-major then
// row-major) directly into matrix buffer matrixIndex, bypassing the eigen
// path. A later UpdateTransitionMatrices call targeting the same index
// overwrites it (write-wins; the library keeps no history, per DESIGN.md).
func SetTransitionMatrix(handle InstanceHandle, matrixIndex int, inMatrix []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkMatrixIndex(matrixIndex); err != nil {
		return err
	}
	if want := st.sizing.MatrixLength(); len(inMatrix) != want {
		return fmt.Errorf("phyloeval: setTransitionMatrix: expected length %d, got %d: %w", want, len(inMatrix), ErrGeneral)
	}
	return st.backend.SetTransitionMatrix(matrixIndex, inMatrix)
}

// GetLogScaleFactors copies the per-pattern log scaling factors accumulated
// at scaling-factor buffer scalingIndex (identified by the destScaling
// argument of a prior UpdatePartials call) into out (length P).
func GetLogScaleFactors(handle InstanceHandle, scalingIndex int, out []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkPartialsIndex(scalingIndex); err != nil {
		return err
	}
	if want := st.sizing.PatternCount; len(out) != want {
		return fmt.Errorf("phyloeval: getLogScaleFactors: expected length %d, got %d: %w", want, len(out), ErrGeneral)
	}
	return st.backend.GetLogScaleFactors(scalingIndex, out)
}
