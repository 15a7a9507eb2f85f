package phyloeval

import "errors"

// Error kinds form a closed taxonomy. Every entry point returns one of these
// (wrapped with call-site context via fmt.Errorf("...: %w", ...)) or nil.
var (
	// ErrGeneral covers malformed arguments that don't fit a more specific kind.
	ErrGeneral = errors.New("phyloeval: general error")
	// ErrOutOfMemory is the kind for a failed buffer-pool allocation. The
	// bundled backends allocate with make, which does not return an error,
	// so none of them returns it.
	ErrOutOfMemory = errors.New("phyloeval: out of memory")
	// ErrUnidentifiedException wraps a backend-internal panic or exception that
	// must not propagate across the boundary.
	ErrUnidentifiedException = errors.New("phyloeval: unidentified exception")
	// ErrUninitializedInstance is returned by any kernel call on a handle that
	// has not completed initialize, or that has been finalized.
	ErrUninitializedInstance = errors.New("phyloeval: uninitialized instance")
	// ErrOutOfRange is returned when an index argument addresses a buffer kind
	// or slot outside the sizing constants fixed at creation.
	ErrOutOfRange = errors.New("phyloeval: index out of range")
)

// IsOutOfRange reports whether err is (or wraps) ErrOutOfRange.
func IsOutOfRange(err error) bool { return errors.Is(err, ErrOutOfRange) }

// IsUninitialized reports whether err is (or wraps) ErrUninitializedInstance.
func IsUninitialized(err error) bool { return errors.Is(err, ErrUninitializedInstance) }
