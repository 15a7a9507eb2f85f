// Package testutil provides shared test infrastructure for the phyloeval
// evaluator: tolerance-based assertions used across the root package and
// the backend/* test suites.
package testutil

import (
	"math"
	"testing"
)

// AssertClose fails the test unless |want-got| <= tol.
func AssertClose(t *testing.T, name string, want, got, tol float64) {
	t.Helper()
	if diff := math.Abs(want - got); diff > tol {
		t.Errorf("%s: got %v, want %v (|diff|=%v > tol=%v)", name, got, want, diff, tol)
	}
}

// AssertRowStochastic fails the test unless every row of the S*S transition
// matrix m (row-major) sums to 1±eps.
func AssertRowStochastic(t *testing.T, name string, m []float64, s int, eps float64) {
	t.Helper()
	for row := 0; row < s; row++ {
		var sum float64
		for col := 0; col < s; col++ {
			sum += m[row*s+col]
		}
		if diff := math.Abs(sum - 1); diff > eps {
			t.Errorf("%s: row %d sums to %v, want 1±%v", name, row, sum, eps)
		}
	}
}
