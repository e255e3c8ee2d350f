package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerTier(t *testing.T) {
	assert.Equal(t, 2048, LowerTier(4096))
	assert.Equal(t, 1024, LowerTier(2048))
	assert.Equal(t, 512, LowerTier(1024))
	assert.Equal(t, 512, LowerTier(512))
	assert.Equal(t, 2048, LowerTier(3000))
}

func TestResourceSample_Pressure(t *testing.T) {
	s := ResourceSample{CPUPercent: 40, MemPercent: 75, GPUPercent: 99}
	assert.Equal(t, 75.0, s.Pressure(), "GPU ignored when absent")

	s.HasGPU = true
	assert.Equal(t, 99.0, s.Pressure())
}

func TestThrottleState_String(t *testing.T) {
	assert.Equal(t, "normal", StateNormal.String())
	assert.Equal(t, "stop", StateStop.String())
	assert.Equal(t, unknownDescription, ThrottleState(9).String())
}

func TestDefaultPoolLimits(t *testing.T) {
	limits := DefaultPoolLimits()
	assert.Equal(t, PoolLimits{Min: 2, Max: 16}, limits[PoolCPU])
	assert.Equal(t, PoolLimits{Min: 1, Max: 8}, limits[PoolGPU])
	assert.Equal(t, PoolLimits{Min: 5, Max: 30}, limits[PoolIO])
}
