package phyloeval

import "fmt"

// Sizing holds the eight constants that parameterize an instance. They are
// immutable for the instance's lifetime; any operation addressing an index
// outside the ranges they imply fails with ErrOutOfRange.
type Sizing struct {
	StateCount           int // S
	PatternCount         int // P
	CategoryCount        int // C
	TipCount             int // T
	PartialsBufferCount  int // B_p
	CompactBufferCount   int // B_c
	EigenBufferCount     int // B_e
	MatrixBufferCount    int // B_m
}

// Validate checks that every sizing constant is strictly positive and that
// tipCount does not exceed partialsBufferCount (tips may be represented as
// partials buffers 0..tipCount-1).
func (s Sizing) Validate() error {
	fields := []struct {
		name string
		val  int
	}{
		{"StateCount", s.StateCount},
		{"PatternCount", s.PatternCount},
		{"CategoryCount", s.CategoryCount},
		{"TipCount", s.TipCount},
		{"PartialsBufferCount", s.PartialsBufferCount},
		{"CompactBufferCount", s.CompactBufferCount},
		{"EigenBufferCount", s.EigenBufferCount},
		{"MatrixBufferCount", s.MatrixBufferCount},
	}
	for _, f := range fields {
		if f.val <= 0 {
			return fmt.Errorf("phyloeval: sizing.%s must be positive, got %d: %w", f.name, f.val, ErrGeneral)
		}
	}
	if s.TipCount > s.PartialsBufferCount {
		return fmt.Errorf("phyloeval: sizing.TipCount (%d) exceeds PartialsBufferCount (%d): %w", s.TipCount, s.PartialsBufferCount, ErrGeneral)
	}
	return nil
}

// PartialsLength returns S*P*C, the length of one partials buffer.
func (s Sizing) PartialsLength() int { return s.StateCount * s.PatternCount * s.CategoryCount }

// MatrixLength returns S*S*C, the length of one transition-matrix buffer.
func (s Sizing) MatrixLength() int { return s.StateCount * s.StateCount * s.CategoryCount }

// EigenMatrixLength returns S*S, the length of U or U^-1 in an eigen buffer.
func (s Sizing) EigenMatrixLength() int { return s.StateCount * s.StateCount }

// MissingSentinel returns the compact-state value denoting "missing" for
// this sizing: S itself. A compact-state entry ranges over 0..S inclusive,
// with S meaning the true state is unobserved.
func (s Sizing) MissingSentinel() int { return s.StateCount }

func (s Sizing) checkPartialsIndex(idx int) error {
	if idx < 0 || idx >= s.PartialsBufferCount {
		return fmt.Errorf("phyloeval: partials index %d out of range [0,%d): %w", idx, s.PartialsBufferCount, ErrOutOfRange)
	}
	return nil
}

func (s Sizing) checkCompactIndex(idx int) error {
	if idx < 0 || idx >= s.CompactBufferCount {
		return fmt.Errorf("phyloeval: tip-state index %d out of range [0,%d): %w", idx, s.CompactBufferCount, ErrOutOfRange)
	}
	return nil
}

func (s Sizing) checkEigenIndex(idx int) error {
	if idx < 0 || idx >= s.EigenBufferCount {
		return fmt.Errorf("phyloeval: eigen index %d out of range [0,%d): %w", idx, s.EigenBufferCount, ErrOutOfRange)
	}
	return nil
}

func (s Sizing) checkMatrixIndex(idx int) error {
	if idx < 0 || idx >= s.MatrixBufferCount {
		return fmt.Errorf("phyloeval: matrix index %d out of range [0,%d): %w", idx, s.MatrixBufferCount, ErrOutOfRange)
	}
	return nil
}

// IsCompactTip reports whether bufferIndex falls in the compact-tip
// convention range: indices below tipCount may be represented either as a
// partials buffer or, when addressed through the compact-state buffer pool,
// as a one-hot/ambiguous tip. The kernel dispatches compact-vs-partials on
// the caller's choice of which setter populated the index, not on the index
// value alone; this helper is used by callers that keep tips exclusively in
// the compact pool.
func (s Sizing) IsCompactTip(index int) bool {
	return index >= 0 && index < s.TipCount
}
