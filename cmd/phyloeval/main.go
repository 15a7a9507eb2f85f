// Entrypoint for the phyloeval CLI; delegates to the Cobra root command in
// cmd/root.go. Blank imports register each backend's constructor into the
// phyloeval package's backend registry.
package main

import (
	"github.com/phyloeval/phyloeval/cmd"

	_ "github.com/phyloeval/phyloeval/backend/gpu"
	_ "github.com/phyloeval/phyloeval/backend/scalar"
	_ "github.com/phyloeval/phyloeval/backend/vector"
)

func main() {
	cmd.Execute()
}
