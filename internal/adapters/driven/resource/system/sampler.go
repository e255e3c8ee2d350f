// Package system samples host CPU and memory utilisation with gopsutil.
package system

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure Sampler implements the interface.
var _ driven.ResourceSampler = (*Sampler)(nil)

// Sampler reads utilisation from the operating system.
type Sampler struct {
	device   domain.Device
	interval time.Duration
	now      func() time.Time
}

// Option configures the sampler.
type Option func(*Sampler)

// WithDevice overrides device detection.
func WithDevice(d domain.Device) Option {
	return func(s *Sampler) {
		s.device = d
	}
}

// WithCPUInterval makes each sample measure CPU over the interval instead
// of since the previous call.
func WithCPUInterval(d time.Duration) Option {
	return func(s *Sampler) {
		s.interval = d
	}
}

// New creates a sampler.
func New(opts ...Option) *Sampler {
	s := &Sampler{device: DetectDevice(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DetectDevice guesses the embedding device. Apple Silicon shares memory
// between CPU and GPU; elsewhere embeddings are assumed to run on the CPU.
func DetectDevice() domain.Device {
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return domain.DeviceUnified
	}
	return domain.DeviceCPU
}

// Sample returns current CPU and memory utilisation. GPU load is not
// measured.
func (s *Sampler) Sample(ctx context.Context) (domain.ResourceSample, error) {
	percents, err := cpu.PercentWithContext(ctx, s.interval, false)
	if err != nil {
		return domain.ResourceSample{}, fmt.Errorf("sample cpu: %w", err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return domain.ResourceSample{}, fmt.Errorf("sample memory: %w", err)
	}

	sample := domain.ResourceSample{
		Time:            s.now(),
		MemPercent:      vm.UsedPercent,
		AvailableMemory: vm.Available,
	}
	if len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}
	return sample, nil
}

// Device reports the compute device embeddings run on.
func (s *Sampler) Device() domain.Device {
	return s.device
}
