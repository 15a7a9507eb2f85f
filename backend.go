package phyloeval

// PartialsOperation is one 6-tuple of a partials-update operation list:
// (dest, destScaling, child1, child1Matrix, child2, child2Matrix).
type PartialsOperation struct {
	Dest          int
	DestScaling   int
	Child1        int
	Child1Matrix  int
	Child2        int
	Child2Matrix  int
}

// RootBuffer is one weighted root-partials contribution to
// CalculateRootLogLikelihoods. Weights has length CategoryCount, Freqs has
// length StateCount.
type RootBuffer struct {
	RootIndex      int
	Weights        []float64
	Freqs          []float64
	ScalingIndices []int
}

// EdgeBuffer is one parent/child/transition-matrix triple contributing to
// CalculateEdgeLogLikelihoods. D1Matrix/D2Matrix are -1 when the
// corresponding derivative is not requested.
type EdgeBuffer struct {
	ParentIndex int
	ChildIndex  int
	Matrix      int
	D1Matrix    int
	D2Matrix    int
}

// InstanceDetails reports the outcome of Initialize: the resource actually
// selected and the capability flags it actually has, which may be a strict
// subset of the caller's preference flags (preferences are soft).
type InstanceDetails struct {
	ResourceIndex  int
	ResourceName   string
	EffectiveFlags Flag
}

// Backend is the capability set every kernel engine implements. An instance
// holds exactly one Backend, selected at creation and fixed thereafter, so
// inner loops stay monomorphic.
//
// Index validation against Sizing has already happened in the phyloeval
// boundary functions that call these methods, so implementations may assume
// indices are in range for the Sizing passed to CreateBuffers.
type Backend interface {
	// CreateBuffers allocates all buffer pools for sizing. Called once,
	// immediately after the backend is selected.
	CreateBuffers(sizing Sizing) error

	// Synchronous reports whether this backend completes every call before
	// returning (true) or may enqueue updatePartials/updateTransitionMatrices
	// onto an internal stream (false).
	Synchronous() bool

	// EffectiveFlags reports this backend's actual capability flags, for
	// InstanceDetails.
	EffectiveFlags() Flag

	SetPartials(bufferIndex int, in []float64) error
	GetPartials(bufferIndex int, out []float64) error
	SetTipStates(tipIndex int, in []int) error
	SetEigenDecomposition(eigenIndex int, u, uInv, eigenvalues []float64) error
	SetCategoryRates(rates []float64) error
	SetTransitionMatrix(matrixIndex int, in []float64) error
	GetLogScaleFactors(scalingIndex int, out []float64) error

	UpdateTransitionMatrices(eigenIndex int, probIdx, d1Idx, d2Idx []int, edgeLengths []float64) error
	UpdatePartials(ops []PartialsOperation, rescale bool) error
	WaitForPartials(destIndices []int) error

	CalculateRootLogLikelihoods(roots []RootBuffer, outSiteLogL []float64) error
	CalculateEdgeLogLikelihoods(edges []EdgeBuffer, weights, freqs []float64, scalingIndices []int, outL, outD1, outD2 []float64) error

	Finalize() error
}

// NewBackendFunc constructs a fresh, not-yet-buffer-allocated Backend for
// one instance. Backend packages register their constructor here via init().
type NewBackendFunc func() Backend

// Registered backend constructors, keyed by resource index. Backend
// sub-packages populate these via init() (see backend/scalar/register.go et
// al.), breaking the import cycle between phyloeval (interface owner) and
// backend/* (implementations).
var backendConstructors = map[int]NewBackendFunc{}

// RegisterBackend wires a backend constructor to a resource index. Called
// from backend packages' init() functions; not meant to be called by
// library consumers directly.
func RegisterBackend(resourceIndex int, ctor NewBackendFunc) {
	backendConstructors[resourceIndex] = ctor
}
