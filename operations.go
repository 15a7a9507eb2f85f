package phyloeval

import "fmt"

// UpdateTransitionMatrices computes, for eigen buffer eigenIndex and each
// i in [0,k), the per-category transition matrix
// M_i[c] = U * diag(exp(lambda * edgeLengths[i] * rates[c])) * U^-1
// into matrix buffer probIdx[i], and optionally its first derivative into
// d1Idx[i] and/or second derivative into d2Idx[i]. d1Idx and d2Idx may be
// nil to skip the corresponding derivative.
//
// Negative edge lengths are rejected with ErrOutOfRange rather than
// clamped (see DESIGN.md).
func UpdateTransitionMatrices(handle InstanceHandle, eigenIndex int, probIdx, d1Idx, d2Idx []int, edgeLengths []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if err := st.sizing.checkEigenIndex(eigenIndex); err != nil {
		return err
	}
	k := len(probIdx)
	if len(edgeLengths) != k {
		return fmt.Errorf("phyloeval: updateTransitionMatrices: probIdx has %d entries, edgeLengths has %d: %w", k, len(edgeLengths), ErrGeneral)
	}
	if d1Idx != nil && len(d1Idx) != k {
		return fmt.Errorf("phyloeval: updateTransitionMatrices: d1Idx has %d entries, want %d: %w", len(d1Idx), k, ErrGeneral)
	}
	if d2Idx != nil && len(d2Idx) != k {
		return fmt.Errorf("phyloeval: updateTransitionMatrices: d2Idx has %d entries, want %d: %w", len(d2Idx), k, ErrGeneral)
	}
	for i := 0; i < k; i++ {
		if err := st.sizing.checkMatrixIndex(probIdx[i]); err != nil {
			return err
		}
		if d1Idx != nil {
			if err := st.sizing.checkMatrixIndex(d1Idx[i]); err != nil {
				return err
			}
		}
		if d2Idx != nil {
			if err := st.sizing.checkMatrixIndex(d2Idx[i]); err != nil {
				return err
			}
		}
		if edgeLengths[i] < 0 {
			return fmt.Errorf("phyloeval: updateTransitionMatrices: edgeLengths[%d]=%g is negative: %w", i, edgeLengths[i], ErrOutOfRange)
		}
	}
	return st.backend.UpdateTransitionMatrices(eigenIndex, probIdx, d1Idx, d2Idx, edgeLengths)
}

// UpdatePartials dispatches the Felsenstein peeling operation list ops
// identically to every instance in handles: the same topology-driven ops
// list applies to every handle, letting one call drive several
// data-parallel instances sharing a tree. Dependency order within ops is
// preserved; see scheduler.go.
func UpdatePartials(handles []InstanceHandle, ops []PartialsOperation, rescale bool) error {
	for _, h := range handles {
		st, err := lookupInitializedInstance(h)
		if err != nil {
			return err
		}
		if err := validateOperations(st.sizing, ops, rescale); err != nil {
			return err
		}
		if err := st.backend.UpdatePartials(ops, rescale); err != nil {
			return fmt.Errorf("phyloeval: updatePartials on handle %d: %w", h, err)
		}
	}
	return nil
}

// WaitForPartials blocks until every buffer in destIndices, most recently
// written by a prior UpdatePartials on each handle, is stable in memory. A
// no-op on synchronous backends.
func WaitForPartials(handles []InstanceHandle, destIndices []int) error {
	for _, h := range handles {
		st, err := lookupInitializedInstance(h)
		if err != nil {
			return err
		}
		for _, idx := range destIndices {
			if err := st.sizing.checkPartialsIndex(idx); err != nil {
				return err
			}
		}
		if err := st.backend.WaitForPartials(destIndices); err != nil {
			return fmt.Errorf("phyloeval: waitForPartials on handle %d: %w", h, err)
		}
	}
	return nil
}
