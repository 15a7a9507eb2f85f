// register.go wires backend/scalar's constructor into the phyloeval
// package's backend registry. This init() runs when any package imports
// backend/scalar, breaking the import cycle between phyloeval/ (interface
// owner) and backend/scalar/ (implementation).
package scalar

import "github.com/phyloeval/phyloeval"

func init() {
	phyloeval.RegisterBackend(0, func() phyloeval.Backend { return New() })
}
