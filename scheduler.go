package phyloeval

import "fmt"

// validateOperations checks index ranges and the dependency-order
// constraint for one updatePartials operation list: an operation's child
// inputs, if they are the dest of some other operation in the same list,
// must be produced by an operation appearing earlier. Inputs that never
// appear as a dest in this list are assumed pre-existing buffers (set by a
// prior setPartials/updatePartials call) and are not further checked here.
// The library does not track cross-call buffer provenance; it computes
// what it is told to compute.
func validateOperations(sizing Sizing, ops []PartialsOperation, rescale bool) error {
	// Built as a single pass over the whole list (not incrementally) so that
	// a child referring to a dest produced by a *later* op in this same
	// list is actually detectable below; building the map one entry at a
	// time while checking would only ever see positions behind the cursor.
	destPosition := make(map[int]int, len(ops))
	for i, op := range ops {
		destPosition[op.Dest] = i
	}

	for i, op := range ops {
		if err := sizing.checkPartialsIndex(op.Dest); err != nil {
			return err
		}
		if err := sizing.checkPartialsIndex(op.Child1); err != nil {
			return err
		}
		if err := sizing.checkPartialsIndex(op.Child2); err != nil {
			return err
		}
		if err := sizing.checkMatrixIndex(op.Child1Matrix); err != nil {
			return err
		}
		if err := sizing.checkMatrixIndex(op.Child2Matrix); err != nil {
			return err
		}
		if rescale {
			if op.DestScaling <= sizing.TipCount {
				return fmt.Errorf("phyloeval: updatePartials op %d: destScaling %d must be > tipCount %d: %w", i, op.DestScaling, sizing.TipCount, ErrOutOfRange)
			}
		}
		if pos, ok := destPosition[op.Child1]; ok && pos >= i {
			return fmt.Errorf("phyloeval: updatePartials op %d: child1 %d produced by op %d, which does not precede it: %w", i, op.Child1, pos, ErrGeneral)
		}
		if pos, ok := destPosition[op.Child2]; ok && pos >= i {
			return fmt.Errorf("phyloeval: updatePartials op %d: child2 %d produced by op %d, which does not precede it: %w", i, op.Child2, pos, ErrGeneral)
		}
	}
	return nil
}
