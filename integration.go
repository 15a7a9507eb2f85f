package phyloeval

import "fmt"

// CalculateRootLogLikelihoods computes, for each root buffer in roots,
// L_p = sum_s freqs[s] * sum_c weights[c] * partials[rootIndex][c,p,s],
// adds back any accumulated scaling corrections, and sums log-likelihoods
// across roots into outSiteLogL (length P). Mixture roots (len(roots)>1)
// are supported by providing several weighted root buffers; any outer
// mixture weight is folded into each buffer's own Weights rather than
// carried as a separate scalar (see DESIGN.md).
func CalculateRootLogLikelihoods(handle InstanceHandle, roots []RootBuffer, outSiteLogL []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if want := st.sizing.PatternCount; len(outSiteLogL) != want {
		return fmt.Errorf("phyloeval: calculateRootLogLikelihoods: outSiteLogL expected length %d, got %d: %w", want, len(outSiteLogL), ErrGeneral)
	}
	for _, root := range roots {
		if err := st.sizing.checkPartialsIndex(root.RootIndex); err != nil {
			return err
		}
		if want := st.sizing.CategoryCount; len(root.Weights) != want {
			return fmt.Errorf("phyloeval: calculateRootLogLikelihoods: weights expected length %d, got %d: %w", want, len(root.Weights), ErrGeneral)
		}
		if want := st.sizing.StateCount; len(root.Freqs) != want {
			return fmt.Errorf("phyloeval: calculateRootLogLikelihoods: freqs expected length %d, got %d: %w", want, len(root.Freqs), ErrGeneral)
		}
	}
	return st.backend.CalculateRootLogLikelihoods(roots, outSiteLogL)
}

// CalculateEdgeLogLikelihoods is like CalculateRootLogLikelihoods but
// inserts a transition matrix (and optional derivative matrices) along the
// edge connecting each edge buffer's parent partials to its child
// partials. outD1/outD2 may be nil to skip the corresponding derivative;
// when non-nil they receive the first/second derivative of outL with
// respect to branch length, evaluated via the edge buffers' D1Matrix/
// D2Matrix. This is the kernel used for branch-length optimization via
// Newton-Raphson.
func CalculateEdgeLogLikelihoods(handle InstanceHandle, edges []EdgeBuffer, weights, freqs []float64, scalingIndices []int, outL, outD1, outD2 []float64) error {
	st, err := lookupInitializedInstance(handle)
	if err != nil {
		return err
	}
	if want := st.sizing.PatternCount; len(outL) != want {
		return fmt.Errorf("phyloeval: calculateEdgeLogLikelihoods: outL expected length %d, got %d: %w", want, len(outL), ErrGeneral)
	}
	if outD1 != nil && len(outD1) != st.sizing.PatternCount {
		return fmt.Errorf("phyloeval: calculateEdgeLogLikelihoods: outD1 expected length %d, got %d: %w", st.sizing.PatternCount, len(outD1), ErrGeneral)
	}
	if outD2 != nil && len(outD2) != st.sizing.PatternCount {
		return fmt.Errorf("phyloeval: calculateEdgeLogLikelihoods: outD2 expected length %d, got %d: %w", st.sizing.PatternCount, len(outD2), ErrGeneral)
	}
	if want := st.sizing.CategoryCount; len(weights) != want {
		return fmt.Errorf("phyloeval: calculateEdgeLogLikelihoods: weights expected length %d, got %d: %w", want, len(weights), ErrGeneral)
	}
	if want := st.sizing.StateCount; len(freqs) != want {
		return fmt.Errorf("phyloeval: calculateEdgeLogLikelihoods: freqs expected length %d, got %d: %w", want, len(freqs), ErrGeneral)
	}
	for _, edge := range edges {
		if err := st.sizing.checkPartialsIndex(edge.ParentIndex); err != nil {
			return err
		}
		if err := st.sizing.checkPartialsIndex(edge.ChildIndex); err != nil {
			return err
		}
		if err := st.sizing.checkMatrixIndex(edge.Matrix); err != nil {
			return err
		}
		if edge.D1Matrix >= 0 {
			if err := st.sizing.checkMatrixIndex(edge.D1Matrix); err != nil {
				return err
			}
		}
		if edge.D2Matrix >= 0 {
			if err := st.sizing.checkMatrixIndex(edge.D2Matrix); err != nil {
				return err
			}
		}
	}
	return st.backend.CalculateEdgeLogLikelihoods(edges, weights, freqs, scalingIndices, outL, outD1, outD2)
}
