package services

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

var schedLog = logger.For("scheduler")

// Scheduler stages and events.
const (
	StageThrottle = "throttle"
	StageLeak     = "suspected_leak"
)

// Batch sizing bounds.
const (
	smallCorpusDocs  = 10
	mediumCorpusDocs = 100
	memoryShare      = 0.8
	bytesPerFloat    = 4
)

// BatchSize picks the embedding batch size for a build.
// Small inputs get fixed sizes; larger ones are bounded by how many
// vectors fit in 80% of available memory, clamped to [512, 4096].
func BatchSize(docCount, dim int, availableMemory uint64, _ domain.Device) int {
	lowest, highest := domain.BatchTiers[0], domain.BatchTiers[len(domain.BatchTiers)-1]
	switch {
	case docCount < smallCorpusDocs:
		return lowest
	case docCount < mediumCorpusDocs:
		return 2048
	}
	if dim <= 0 {
		return lowest
	}
	fit := int(memoryShare * float64(availableMemory) / float64(dim*bytesPerFloat))
	return max(lowest, min(fit, highest))
}

// SchedulerConfig tunes the scheduler.
type SchedulerConfig struct {
	// Interval is the sampling cadence of Start.
	Interval time.Duration

	// WarnAt, ThrottleAt and StopAt are pressure thresholds in percent.
	WarnAt     float64
	ThrottleAt float64
	StopAt     float64

	Pools map[domain.PoolKind]domain.PoolLimits

	// LeakWindow is the number of memory samples fitted for leak detection.
	LeakWindow int
	// LeakSlope is the growth in percentage points per sample that trips it.
	LeakSlope float64

	// AdmitPoll is how often Admit re-samples while waiting.
	AdmitPoll time.Duration
}

// DefaultSchedulerConfig returns the standard thresholds and pool bounds.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   3 * time.Second,
		WarnAt:     70,
		ThrottleAt: 80,
		StopAt:     90,
		Pools:      domain.DefaultPoolLimits(),
		LeakWindow: 20,
		LeakSlope:  0.5,
		AdmitPoll:  500 * time.Millisecond,
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerConfig replaces the default configuration.
func WithSchedulerConfig(cfg SchedulerConfig) SchedulerOption {
	return func(s *Scheduler) {
		s.cfg = cfg
	}
}

// WithCleanup replaces the action run when a leak is suspected.
func WithCleanup(fn func()) SchedulerOption {
	return func(s *Scheduler) {
		s.cleanup = fn
	}
}

// WithProgress publishes state changes on a bus.
func WithProgress(bus *ProgressBus) SchedulerOption {
	return func(s *Scheduler) {
		s.bus = bus
	}
}

// Scheduler maps live resource pressure to admission, batch size and
// worker pool decisions.
type Scheduler struct {
	sampler driven.ResourceSampler
	bus     *ProgressBus
	cfg     SchedulerConfig
	cleanup func()

	mu    sync.Mutex
	state domain.ThrottleState
	last  domain.ResourceSample
	// tiers is how many batch tiers a planned size drops while throttled.
	tiers int
	pools map[domain.PoolKind]*AdaptivePool

	memory    []float64
	leakFired bool
	leakSlope float64

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler. sampler may be nil, in which case the
// state only changes through Check.
func NewScheduler(sampler driven.ResourceSampler, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sampler: sampler,
		cfg:     DefaultSchedulerConfig(),
		cleanup: freeMemory,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Pools == nil {
		s.cfg.Pools = domain.DefaultPoolLimits()
	}
	if s.cfg.LeakWindow < 2 {
		s.cfg.LeakWindow = 2
	}
	if s.cfg.AdmitPoll <= 0 {
		s.cfg.AdmitPoll = 500 * time.Millisecond
	}
	s.pools = make(map[domain.PoolKind]*AdaptivePool, len(s.cfg.Pools))
	for kind, limits := range s.cfg.Pools {
		s.pools[kind] = NewAdaptivePool(kind, limits)
	}
	return s
}

func freeMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}

// Start samples resources every interval until ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	defer func() {
		s.markStopped()
		close(doneCh)
	}()

	if s.sampler == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		}
	}

	s.sampleOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

// Stop ends the monitor loop started by Start and waits for it to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	return nil
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) sampleOnce(ctx context.Context) {
	sample, err := s.sampler.Sample(ctx)
	if err != nil {
		schedLog.Warn("sampling resources: %v", err)
		return
	}
	s.Check(sample)
}

// Check evaluates one sample and applies the actions of any transition.
// It returns the resulting state.
func (s *Scheduler) Check(sample domain.ResourceSample) domain.ThrottleState {
	if sample.Time.IsZero() {
		sample.Time = time.Now()
	}

	s.mu.Lock()
	prev := s.state
	next := s.classify(sample.Pressure())
	s.state = next
	s.last = sample

	throttled := next >= domain.StateThrottle
	switch {
	case throttled && prev < domain.StateThrottle:
		s.tiers = 1
		for _, p := range s.pools {
			p.Shrink()
		}
	case throttled:
		if s.tiers < len(domain.BatchTiers)-1 {
			s.tiers++
		}
	case prev >= domain.StateThrottle:
		s.tiers = 0
		for _, p := range s.pools {
			p.Restore()
		}
	}

	leak, rate := s.trackMemory(sample.MemPercent)
	s.mu.Unlock()

	if next != prev {
		s.announce(prev, next, sample)
	}
	if leak {
		schedLog.Warn("memory grows %.2f points per sample, running cleanup", rate)
		s.emit(StageLeak, domain.PhaseWarning, fmt.Sprintf("suspected memory leak (slope %.2f%%/sample)", rate),
			map[string]any{"slope": rate, "mem_percent": sample.MemPercent})
		if s.cleanup != nil {
			s.cleanup()
		}
	}
	return next
}

func (s *Scheduler) classify(pressure float64) domain.ThrottleState {
	switch {
	case pressure >= s.cfg.StopAt:
		return domain.StateStop
	case pressure >= s.cfg.ThrottleAt:
		return domain.StateThrottle
	case pressure >= s.cfg.WarnAt:
		return domain.StateWarn
	default:
		return domain.StateNormal
	}
}

// trackMemory appends to the leak window and reports a newly suspected
// leak. It fires once per sustained growth and re-arms when the slope
// drops back under the limit. Callers hold s.mu.
func (s *Scheduler) trackMemory(memPercent float64) (bool, float64) {
	s.memory = append(s.memory, memPercent)
	if len(s.memory) > s.cfg.LeakWindow {
		s.memory = s.memory[len(s.memory)-s.cfg.LeakWindow:]
	}
	if len(s.memory) < s.cfg.LeakWindow {
		return false, 0
	}

	s.leakSlope = slope(s.memory)
	if s.leakSlope <= s.cfg.LeakSlope {
		s.leakFired = false
		return false, s.leakSlope
	}
	if s.leakFired {
		return false, s.leakSlope
	}
	s.leakFired = true
	return true, s.leakSlope
}

// slope is the least-squares gradient of ys against their index.
func slope(ys []float64) float64 {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func (s *Scheduler) announce(prev, next domain.ThrottleState, sample domain.ResourceSample) {
	msg := fmt.Sprintf("%s -> %s at %.0f%% pressure", prev, next, sample.Pressure())
	extra := map[string]any{"state": next.String(), "pressure": sample.Pressure()}
	if next == domain.StateNormal {
		schedLog.Info("%s", msg)
		s.emit(StageThrottle, domain.PhaseInfo, msg, extra)
		return
	}
	schedLog.Warn("%s", msg)
	s.emit(StageThrottle, domain.PhaseWarning, msg, extra)
}

func (s *Scheduler) emit(stage string, phase domain.Phase, msg string, extra map[string]any) {
	s.bus.Emit(domain.ProgressEvent{
		Component: "scheduler",
		Stage:     stage,
		Phase:     phase,
		Message:   msg,
		Extra:     extra,
	})
}

// State returns the current throttle state.
func (s *Scheduler) State() domain.ThrottleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Admit decides whether a new build may start. In the Stop state it
// re-samples every AdmitPoll until pressure drops or wait elapses, then
// fails with ErrResourcePressure.
func (s *Scheduler) Admit(ctx context.Context, wait time.Duration) error {
	if s.State() < domain.StateStop {
		return nil
	}

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(s.cfg.AdmitPoll)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if s.sampler != nil {
			s.sampleOnce(ctx)
		}
		if s.State() < domain.StateStop {
			return nil
		}
	}

	s.mu.Lock()
	pressure := s.last.Pressure()
	s.mu.Unlock()
	return fmt.Errorf("%w: system at %.0f%% (stop threshold %.0f%%)", domain.ErrResourcePressure, pressure, s.cfg.StopAt)
}

// NextBatch lowers a planned batch size by one tier per throttled check
// since Throttle was entered. Outside Throttle and Stop it returns size
// unchanged.
func (s *Scheduler) NextBatch(size int) int {
	s.mu.Lock()
	tiers := s.tiers
	s.mu.Unlock()
	for i := 0; i < tiers; i++ {
		size = domain.LowerTier(size)
	}
	return size
}

// Throttled reports whether builders should pause before the next batch.
func (s *Scheduler) Throttled() bool {
	return s.State() >= domain.StateThrottle
}

// Pool returns the adaptive pool of a kind, or nil.
func (s *Scheduler) Pool(kind domain.PoolKind) *AdaptivePool {
	return s.pools[kind]
}

// Device reports the sampler's compute device.
func (s *Scheduler) Device() domain.Device {
	if s.sampler == nil {
		return domain.DeviceCPU
	}
	return s.sampler.Device()
}

// AvailableMemory returns the last sampled free memory, sampling once if
// nothing has been measured yet.
func (s *Scheduler) AvailableMemory(ctx context.Context) uint64 {
	s.mu.Lock()
	avail := s.last.AvailableMemory
	s.mu.Unlock()
	if avail == 0 && s.sampler != nil {
		if sample, err := s.sampler.Sample(ctx); err == nil {
			s.Check(sample)
			avail = sample.AvailableMemory
		}
	}
	return avail
}

// Status returns a snapshot for display.
func (s *Scheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	pools := make(map[domain.PoolKind]int, len(s.pools))
	for kind, p := range s.pools {
		pools[kind] = p.Size()
	}
	return domain.SchedulerStatus{
		State:         s.state,
		Sample:        s.last,
		Pools:         pools,
		LeakSuspected: s.leakFired,
		LeakSlope:     s.leakSlope,
	}
}
