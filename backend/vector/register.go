// register.go wires backend/vector's constructor into the phyloeval
// package's backend registry, mirroring backend/scalar/register.go.
package vector

import "github.com/phyloeval/phyloeval"

func init() {
	phyloeval.RegisterBackend(1, func() phyloeval.Backend { return New() })
}
