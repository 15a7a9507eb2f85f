// Package phyloeval provides an instance-scoped engine for evaluating
// phylogenetic likelihoods: the probability of observed molecular sequence
// data given a tree, a continuous-time Markov substitution model, and a
// discrete distribution of rate heterogeneity across sites.
//
// # Reading Guide
//
// Start with these files to understand the evaluator:
//   - instance.go: instance lifecycle (create → initialize → finalize)
//   - buffers.go: buffer sizing (Sizing) and index-range checks
//   - backend.go: the Backend interface every engine implements
//   - setters.go, operations.go, integration.go: the procedural boundary API
//
// # Architecture
//
// phyloeval defines the instance/buffer model and the boundary API;
// kernel implementations live in sub-packages:
//   - backend/scalar/: reference double-precision CPU engine
//   - backend/vector/: gonum/mat-backed dense-matrix CPU engine
//   - backend/gpu/: goroutine-simulated asynchronous engine
//
// Backend packages register their constructors via init() functions that
// call RegisterBackend with their resource index, breaking the import cycle between phyloeval/ (interface
// owner) and backend/*/ (implementations). Production code imports the
// backend packages it needs; tests that need all three use a blank import.
//
// # Key Interface
//
// The sole extension point is Backend: createBuffers, setPartials/getPartials,
// updateTransitionMatrices, updatePartials, waitForPartials,
// calculateRootLogLikelihoods, calculateEdgeLogLikelihoods, finalize.
package phyloeval
