package phyloeval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlag_HasAndHasAny(t *testing.T) {
	f := FlagPrecisionDouble | FlagDeviceCPU
	assert.True(t, f.Has(FlagPrecisionDouble))
	assert.True(t, f.Has(FlagPrecisionDouble|FlagDeviceCPU))
	assert.False(t, f.Has(FlagPrecisionDouble|FlagDeviceGPU))
	assert.True(t, f.HasAny(FlagPrecisionDouble|FlagDeviceGPU))
	assert.False(t, f.HasAny(FlagDeviceGPU|FlagDeviceFPGA))
}

func TestFlag_String(t *testing.T) {
	assert.Equal(t, "NONE", Flag(0).String())
	assert.Equal(t, "DOUBLE|CPU", (FlagPrecisionDouble | FlagDeviceCPU).String())
}

func TestListResources_ReturnsACopy(t *testing.T) {
	got := ListResources()
	original := got[0].Name
	got[0].Name = "mutated"
	again := ListResources()
	assert.Equal(t, original, again[0].Name)
}
