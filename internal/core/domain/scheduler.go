package domain

import "time"

// Device is the compute device embeddings run on.
type Device string

// Devices.
const (
	DeviceCPU     Device = "cpu"
	DeviceGPU     Device = "gpu"
	DeviceUnified Device = "unified"
)

// BatchTiers are the allowed embedding batch sizes, ascending.
var BatchTiers = []int{512, 1024, 2048, 4096}

// LowerTier returns the next tier below size, or the lowest tier.
func LowerTier(size int) int {
	lower := BatchTiers[0]
	for _, t := range BatchTiers {
		if t < size {
			lower = t
		}
	}
	return lower
}

// ThrottleState is the scheduler's pressure level.
type ThrottleState int

// Throttle states in increasing severity.
const (
	StateNormal ThrottleState = iota
	StateWarn
	StateThrottle
	StateStop
)

// String returns the state name.
func (s ThrottleState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateWarn:
		return "warn"
	case StateThrottle:
		return "throttle"
	case StateStop:
		return "stop"
	default:
		return unknownDescription
	}
}

// ResourceSample is one measurement of system load, in percent.
type ResourceSample struct {
	Time            time.Time
	CPUPercent      float64
	MemPercent      float64
	GPUPercent      float64
	HasGPU          bool
	AvailableMemory uint64
}

// Pressure is the highest utilisation across devices.
func (s ResourceSample) Pressure() float64 {
	p := s.CPUPercent
	if s.MemPercent > p {
		p = s.MemPercent
	}
	if s.HasGPU && s.GPUPercent > p {
		p = s.GPUPercent
	}
	return p
}

// PoolKind names a worker pool.
type PoolKind string

// Worker pools.
const (
	PoolCPU PoolKind = "cpu"
	PoolGPU PoolKind = "gpu"
	PoolIO  PoolKind = "io"
)

// PoolLimits bounds a worker pool.
type PoolLimits struct {
	Min int
	Max int
}

// DefaultPoolLimits returns the configured bounds for a pool.
func DefaultPoolLimits() map[PoolKind]PoolLimits {
	return map[PoolKind]PoolLimits{
		PoolCPU: {Min: 2, Max: 16},
		PoolGPU: {Min: 1, Max: 8},
		PoolIO:  {Min: 5, Max: 30},
	}
}

// SchedulerStatus is a snapshot of the scheduler.
type SchedulerStatus struct {
	State         ThrottleState
	Sample        ResourceSample
	Pools         map[PoolKind]int
	LeakSuspected bool
	LeakSlope     float64
}
