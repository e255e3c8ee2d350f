package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func sampleAt(pressure float64) domain.ResourceSample {
	return domain.ResourceSample{CPUPercent: pressure, MemPercent: 10}
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		name  string
		docs  int
		dim   int
		avail uint64
		want  int
	}{
		{"tiny corpus", 9, 512, 1 << 30, 512},
		{"small corpus", 10, 512, 1 << 30, 2048},
		{"just under hundred", 99, 512, 0, 2048},
		{"plenty of memory clamps high", 100, 512, 16 << 30, 4096},
		{"little memory clamps low", 1000, 1024, 1 << 20, 512},
		{"fits in between", 1000, 1000, 10_000_000, 2000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BatchSize(tt.docs, tt.dim, tt.avail, domain.DeviceCPU))
		})
	}
}

func TestAdaptivePool_GrowsAndShrinks(t *testing.T) {
	p := NewAdaptivePool(domain.PoolIO, domain.PoolLimits{Min: 5, Max: 30})
	assert.Equal(t, 5, p.Size())

	assert.Equal(t, 7, p.Observe(50))
	assert.Equal(t, 9, p.Observe(50))

	for i := 0; i < 30; i++ {
		p.Observe(100)
	}
	assert.Equal(t, 30, p.Size(), "bounded by max")

	// The window still averages above 10 until enough low samples arrive.
	for i := 0; i < 10; i++ {
		p.Observe(0)
	}
	assert.Less(t, p.Size(), 30)
	for i := 0; i < 40; i++ {
		p.Observe(0)
	}
	assert.Equal(t, 5, p.Size(), "bounded by min")
}

func TestAdaptivePool_ShrinkAndRestore(t *testing.T) {
	p := NewAdaptivePool(domain.PoolCPU, domain.PoolLimits{Min: 2, Max: 16})
	p.Observe(20)
	require.Equal(t, 4, p.Size())

	p.Shrink()
	assert.Equal(t, 3, p.Size())
	p.Restore()
	assert.Equal(t, 4, p.Size())

	low := NewAdaptivePool(domain.PoolGPU, domain.PoolLimits{Min: 1, Max: 8})
	low.Shrink()
	assert.Equal(t, 1, low.Size(), "never below min")
}

func TestScheduler_StateThresholds(t *testing.T) {
	s := NewScheduler(nil)
	tests := []struct {
		pressure float64
		want     domain.ThrottleState
	}{
		{10, domain.StateNormal},
		{69.9, domain.StateNormal},
		{70, domain.StateWarn},
		{80, domain.StateThrottle},
		{89, domain.StateThrottle},
		{90, domain.StateStop},
		{100, domain.StateStop},
		{0, domain.StateNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Check(sampleAt(tt.pressure)), "pressure %.1f", tt.pressure)
	}
}

func TestScheduler_GPUCountsOnlyWhenPresent(t *testing.T) {
	s := NewScheduler(nil)
	assert.Equal(t, domain.StateNormal, s.Check(domain.ResourceSample{GPUPercent: 99}))
	assert.Equal(t, domain.StateStop, s.Check(domain.ResourceSample{GPUPercent: 99, HasGPU: true}))
}

func TestScheduler_ThrottleLowersBatchAndPools(t *testing.T) {
	s := NewScheduler(nil)
	io := s.Pool(domain.PoolIO)
	io.Observe(40)
	before := io.Size()

	assert.Equal(t, 4096, s.NextBatch(4096))

	s.Check(sampleAt(85))
	assert.Equal(t, 2048, s.NextBatch(4096))
	assert.Equal(t, 1024, s.NextBatch(2048))
	assert.Equal(t, 512, s.NextBatch(1024))
	assert.Equal(t, 512, s.NextBatch(512))
	assert.Equal(t, before-1, io.Size())
	assert.True(t, s.Throttled())

	// Staying throttled keeps lowering, never below the lowest tier.
	s.Check(sampleAt(85))
	s.Check(sampleAt(85))
	s.Check(sampleAt(85))
	assert.Equal(t, 512, s.NextBatch(4096))

	s.Check(sampleAt(50))
	assert.Equal(t, 4096, s.NextBatch(4096))
	assert.Equal(t, before, io.Size())
	assert.False(t, s.Throttled())
}

func TestScheduler_AdmitRejectsUnderPersistentPressure(t *testing.T) {
	sampler := newFakeSampler(95)
	cfg := DefaultSchedulerConfig()
	cfg.AdmitPoll = 5 * time.Millisecond
	s := NewScheduler(sampler, WithSchedulerConfig(cfg))

	require.NoError(t, s.Admit(context.Background(), 0))

	s.Check(sampleAt(95))
	err := s.Admit(context.Background(), 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrResourcePressure))
	assert.Equal(t, "ResourcePressure", domain.Kind(err))
}

func TestScheduler_AdmitWaitsForPressureToDrop(t *testing.T) {
	sampler := newFakeSampler(95, 95, 40)
	cfg := DefaultSchedulerConfig()
	cfg.AdmitPoll = 5 * time.Millisecond
	s := NewScheduler(sampler, WithSchedulerConfig(cfg))
	s.Check(sampleAt(95))

	require.NoError(t, s.Admit(context.Background(), time.Second))
	assert.Equal(t, domain.StateNormal, s.State())
}

func TestScheduler_AdmitHonoursContext(t *testing.T) {
	s := NewScheduler(newFakeSampler(95))
	s.Check(sampleAt(95))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Admit(ctx, time.Minute), context.Canceled)
}

func TestScheduler_LeakFiresOnce(t *testing.T) {
	var cleanups atomic.Int32
	bus := NewProgressBus()
	events := collect(bus)
	s := NewScheduler(nil, WithCleanup(func() { cleanups.Add(1) }), WithProgress(bus))

	for i := 0; i < 40; i++ {
		s.Check(domain.ResourceSample{MemPercent: 10 + float64(i)})
	}
	assert.Equal(t, int32(1), cleanups.Load())
	assert.True(t, s.Status().LeakSuspected)
	assert.InDelta(t, 1.0, s.Status().LeakSlope, 1e-9)

	// Flat memory re-arms the detector.
	for i := 0; i < 20; i++ {
		s.Check(domain.ResourceSample{MemPercent: 50})
	}
	assert.False(t, s.Status().LeakSuspected)
	for i := 0; i < 20; i++ {
		s.Check(domain.ResourceSample{MemPercent: 50 + float64(i)})
	}
	assert.Equal(t, int32(2), cleanups.Load())

	leaks := 0
	for _, ev := range events() {
		if ev.Stage == StageLeak {
			leaks++
		}
	}
	assert.Equal(t, 2, leaks)
}

func TestScheduler_NoLeakBelowWindow(t *testing.T) {
	var cleanups atomic.Int32
	s := NewScheduler(nil, WithCleanup(func() { cleanups.Add(1) }))
	for i := 0; i < 19; i++ {
		s.Check(domain.ResourceSample{MemPercent: float64(i * 3)})
	}
	assert.Zero(t, cleanups.Load())
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 0.0, slope([]float64{5, 5, 5}), 1e-9)
	assert.InDelta(t, 2.0, slope([]float64{1, 3, 5, 7}), 1e-9)
	assert.InDelta(t, -0.5, slope([]float64{2, 1.5, 1}), 1e-9)
}

func TestScheduler_TransitionsAreAnnounced(t *testing.T) {
	bus := NewProgressBus()
	events := collect(bus)
	s := NewScheduler(nil, WithProgress(bus))

	s.Check(sampleAt(75))
	s.Check(sampleAt(76))
	s.Check(sampleAt(20))

	got := events()
	require.Len(t, got, 2)
	assert.Equal(t, domain.PhaseWarning, got[0].Phase)
	assert.Equal(t, "warn", got[0].Extra["state"])
	assert.Equal(t, domain.PhaseInfo, got[1].Phase)
}

func TestScheduler_StartStop(t *testing.T) {
	sampler := newFakeSampler(85)
	cfg := DefaultSchedulerConfig()
	cfg.Interval = 5 * time.Millisecond
	s := NewScheduler(sampler, WithSchedulerConfig(cfg))

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.State() == domain.StateThrottle }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())
	assert.NoError(t, <-done)
	require.NoError(t, s.Stop(), "second stop is a no-op")

	status := s.Status()
	assert.Equal(t, domain.StateThrottle, status.State)
	assert.Len(t, status.Pools, 3)
}

func TestScheduler_StartEndsWithContext(t *testing.T) {
	s := NewScheduler(newFakeSampler(10))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
