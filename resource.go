package phyloeval

import "strings"

// Flag is a capability bitmask drawn from a closed set: precision,
// synchrony, and device class. Used both to describe a Resource and to
// express preference/requirement constraints at instance creation.
type Flag uint32

const (
	FlagPrecisionDouble Flag = 1 << iota
	FlagPrecisionSingle
	FlagSyncSynchronous
	FlagSyncAsynchronous
	FlagDeviceCPU
	FlagDeviceGPU
	FlagDeviceFPGA
	FlagDeviceCell
	FlagSIMDSSE
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagPrecisionDouble, "DOUBLE"},
	{FlagPrecisionSingle, "SINGLE"},
	{FlagSyncSynchronous, "SYNC"},
	{FlagSyncAsynchronous, "ASYNC"},
	{FlagDeviceCPU, "CPU"},
	{FlagDeviceGPU, "GPU"},
	{FlagDeviceFPGA, "FPGA"},
	{FlagDeviceCell, "CELL"},
	{FlagSIMDSSE, "SSE"},
}

// Has reports whether f contains every bit set in other.
func (f Flag) Has(other Flag) bool { return f&other == other }

// HasAny reports whether f contains any bit set in other.
func (f Flag) HasAny(other Flag) bool { return f&other != 0 }

// String renders f as a pipe-joined list of flag names, for diagnostics.
func (f Flag) String() string {
	var names []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Resource describes one computational resource (a distinct CPU or GPU
// device) available to back an instance.
type Resource struct {
	Index       int
	Name        string
	Description string
	Flags       Flag
}

// resourceRegistry is computed once per process and is read-only to callers.
// Index 0 is always the reference scalar CPU resource; the registry never
// owns computation, it is a lookup service consulted by the instance manager.
var resourceRegistry = []Resource{
	{
		Index:       0,
		Name:        "CPU",
		Description: "reference scalar double-precision CPU engine",
		Flags:       FlagPrecisionDouble | FlagSyncSynchronous | FlagDeviceCPU,
	},
	{
		Index:       1,
		Name:        "CPU-SSE",
		Description: "dense-matrix (gonum/mat) vectorized CPU engine",
		Flags:       FlagPrecisionDouble | FlagSyncSynchronous | FlagDeviceCPU | FlagSIMDSSE,
	},
	{
		Index:       2,
		Name:        "GPU",
		Description: "goroutine-simulated asynchronous accelerator engine",
		Flags:       FlagPrecisionDouble | FlagSyncAsynchronous | FlagDeviceGPU,
	},
}

// ListResources returns the process-wide, read-only list of available
// computational resources and their capability flags.
func ListResources() []Resource {
	out := make([]Resource, len(resourceRegistry))
	copy(out, resourceRegistry)
	return out
}

// GetResource returns the resource at index, or ErrOutOfRange if index is
// not a valid registry slot.
func GetResource(index int) (Resource, error) {
	if index < 0 || index >= len(resourceRegistry) {
		return Resource{}, ErrOutOfRange
	}
	return resourceRegistry[index], nil
}
