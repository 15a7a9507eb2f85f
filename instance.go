package phyloeval

import (
	"fmt"
	"math/bits"
	"sync"
)

// InstanceHandle identifies one live instance. Handles are non-negative and
// may be recycled after Finalize, preferring small integer handles over
// opaque pointers at this API's boundary.
type InstanceHandle int32

type instanceState struct {
	sizing         Sizing
	backend        Backend
	resourceIndex  int
	resourceName   string
	effectiveFlags Flag
	initialized    bool
}

// instances maps handles to backend+buffer-pool state. Guarded by instancesMu
// because distinct instances may be driven from distinct caller goroutines
// (multi-instance reentrant), even though any single handle must still be
// serialized by the caller.
var (
	instancesMu sync.Mutex
	instances   = map[InstanceHandle]*instanceState{}
	freeHandles []InstanceHandle
	nextHandle  InstanceHandle
)

// CreateInstance selects a backend by scanning the resource registry in
// order, rejecting resources not in allowedResources (if non-empty) or
// missing any requirementFlags bit, and among the remaining candidates
// preferring the one matching the most preferenceFlags bits (ties keep
// registry order). On success it allocates all buffers on the chosen
// backend and returns a handle. Requirement flags are hard; preference
// flags are soft.
func CreateInstance(sizing Sizing, allowedResources []int, preferenceFlags, requirementFlags Flag) (InstanceHandle, error) {
	if err := sizing.Validate(); err != nil {
		return -1, err
	}

	var allowedSet map[int]bool
	if len(allowedResources) > 0 {
		allowedSet = make(map[int]bool, len(allowedResources))
		for _, idx := range allowedResources {
			allowedSet[idx] = true
		}
	}

	best := -1
	bestScore := -1
	for _, res := range resourceRegistry {
		if allowedSet != nil && !allowedSet[res.Index] {
			continue
		}
		if !res.Flags.Has(requirementFlags) {
			continue
		}
		if _, ok := backendConstructors[res.Index]; !ok {
			continue
		}
		score := bits.OnesCount32(uint32(res.Flags & preferenceFlags))
		if score > bestScore {
			bestScore = score
			best = res.Index
		}
	}
	if best < 0 {
		return -1, fmt.Errorf("phyloeval: no registered backend satisfies requirement flags %s among allowed resources: %w", requirementFlags, ErrGeneral)
	}

	ctor := backendConstructors[best]
	backend := ctor()
	if err := backend.CreateBuffers(sizing); err != nil {
		return -1, fmt.Errorf("phyloeval: allocating buffers on resource %d: %w", best, err)
	}

	res, _ := GetResource(best)
	st := &instanceState{
		sizing:        sizing,
		backend:       backend,
		resourceIndex: best,
		resourceName:  res.Name,
	}

	instancesMu.Lock()
	defer instancesMu.Unlock()
	handle := allocateHandleLocked()
	instances[handle] = st
	return handle, nil
}

func allocateHandleLocked() InstanceHandle {
	if n := len(freeHandles); n > 0 {
		h := freeHandles[n-1]
		freeHandles = freeHandles[:n-1]
		return h
	}
	h := nextHandle
	nextHandle++
	return h
}

// Initialize completes any deferred backend initialization and reports the
// chosen resource and the backend's effective (not preferred) capability
// flags. Calling any other kernel function before Initialize fails with
// ErrUninitializedInstance.
func Initialize(handle InstanceHandle) (InstanceDetails, error) {
	st, err := lookupInstance(handle)
	if err != nil {
		return InstanceDetails{}, err
	}
	st.effectiveFlags = st.backend.EffectiveFlags()
	st.initialized = true
	return InstanceDetails{
		ResourceIndex:  st.resourceIndex,
		ResourceName:   st.resourceName,
		EffectiveFlags: st.effectiveFlags,
	}, nil
}

// Finalize releases all buffers and backend state for handle. Subsequent
// use of handle fails with ErrUninitializedInstance; the handle may be
// reused by a later CreateInstance.
func Finalize(handle InstanceHandle) error {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	st, ok := instances[handle]
	if !ok {
		return fmt.Errorf("phyloeval: finalize: %w", ErrUninitializedInstance)
	}
	err := st.backend.Finalize()
	delete(instances, handle)
	freeHandles = append(freeHandles, handle)
	if err != nil {
		return fmt.Errorf("phyloeval: finalize: %w", err)
	}
	return nil
}

// lookupInstance returns the live, initialized-or-not state for handle.
// Kernel calls that require initialization use lookupInitializedInstance.
func lookupInstance(handle InstanceHandle) (*instanceState, error) {
	instancesMu.Lock()
	defer instancesMu.Unlock()
	st, ok := instances[handle]
	if !ok {
		return nil, fmt.Errorf("phyloeval: handle %d: %w", handle, ErrUninitializedInstance)
	}
	return st, nil
}

// lookupInitializedInstance is used by every kernel entry point other than
// CreateInstance/Initialize: it fails with ErrUninitializedInstance both for
// unknown handles and for handles that have not yet completed Initialize.
func lookupInitializedInstance(handle InstanceHandle) (*instanceState, error) {
	st, err := lookupInstance(handle)
	if err != nil {
		return nil, err
	}
	if !st.initialized {
		return nil, fmt.Errorf("phyloeval: handle %d not initialized: %w", handle, ErrUninitializedInstance)
	}
	return st, nil
}
