// register.go wires backend/gpu's constructor into the phyloeval package's
// backend registry, mirroring backend/scalar/register.go.
package gpu

import "github.com/phyloeval/phyloeval"

func init() {
	phyloeval.RegisterBackend(2, func() phyloeval.Backend { return New() })
}
