package services

import (
	"sync"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// Worker sizing constants.
const (
	poolWindow      = 10
	poolGrowAbove   = 10.0
	poolShrinkUnder = 2.0
	poolGrowStep    = 2
	poolShrinkStep  = 1
)

// AdaptivePool tracks the worker count of one pool from observed queue
// depths. It does not run goroutines itself; callers bound their fan-out
// with Size.
type AdaptivePool struct {
	kind   domain.PoolKind
	limits domain.PoolLimits

	mu       sync.Mutex
	size     int
	depths   []int
	next     int
	filled   bool
	shrunken bool
}

// NewAdaptivePool creates a pool starting at its minimum size.
func NewAdaptivePool(kind domain.PoolKind, limits domain.PoolLimits) *AdaptivePool {
	if limits.Min < 1 {
		limits.Min = 1
	}
	if limits.Max < limits.Min {
		limits.Max = limits.Min
	}
	return &AdaptivePool{
		kind:   kind,
		limits: limits,
		size:   limits.Min,
		depths: make([]int, poolWindow),
	}
}

// Kind returns the pool name.
func (p *AdaptivePool) Kind() domain.PoolKind {
	return p.kind
}

// Observe records a queue depth and resizes the pool from the average of
// the last ten observations. It returns the effective size.
func (p *AdaptivePool) Observe(depth int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.depths[p.next] = depth
	p.next = (p.next + 1) % len(p.depths)
	if p.next == 0 {
		p.filled = true
	}

	n := p.next
	if p.filled {
		n = len(p.depths)
	}
	sum := 0
	for _, d := range p.depths[:n] {
		sum += d
	}
	avg := float64(sum) / float64(n)

	switch {
	case avg > poolGrowAbove:
		p.size = min(p.size+poolGrowStep, p.limits.Max)
	case avg < poolShrinkUnder:
		p.size = max(p.size-poolShrinkStep, p.limits.Min)
	}
	return p.effective()
}

// Size returns the number of workers callers should run.
func (p *AdaptivePool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effective()
}

// Shrink lowers the effective size by one step until Restore.
func (p *AdaptivePool) Shrink() {
	p.mu.Lock()
	p.shrunken = true
	p.mu.Unlock()
}

// Restore re-enables the full size after Shrink.
func (p *AdaptivePool) Restore() {
	p.mu.Lock()
	p.shrunken = false
	p.mu.Unlock()
}

func (p *AdaptivePool) effective() int {
	if p.shrunken {
		return max(p.size-poolShrinkStep, p.limits.Min)
	}
	return p.size
}
