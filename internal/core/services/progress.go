package services

import (
	"sync"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driving"
)

// Ensure ProgressBus implements the interface.
var _ driving.ProgressFeed = (*ProgressBus)(nil)

// ProgressBus fans progress events out to subscribers.
// Emit never blocks: a subscriber whose buffer is full misses the event.
type ProgressBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.ProgressEvent
	now    func() time.Time
}

// NewProgressBus creates an empty bus.
func NewProgressBus() *ProgressBus {
	return &ProgressBus{
		subs: make(map[int]chan domain.ProgressEvent),
		now:  time.Now,
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes
// and closes the channel; it is safe to call more than once.
func (b *ProgressBus) Subscribe(buffer int) (<-chan domain.ProgressEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.ProgressEvent, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Emit delivers an event to every subscriber without waiting.
// A nil bus discards events.
func (b *ProgressBus) Emit(ev domain.ProgressEvent) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = b.now()
	}
	if ev.Step == 0 {
		ev.Step = domain.StepIndex(ev.Stage)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// emitter stamps events with a fixed component and corpus.
type emitter struct {
	bus       *ProgressBus
	component string
	corpus    string
}

func (e emitter) emit(stage string, phase domain.Phase, msg string, extra map[string]any) {
	e.bus.Emit(domain.ProgressEvent{
		Component: e.component,
		Corpus:    e.corpus,
		Stage:     stage,
		Phase:     phase,
		Message:   msg,
		Extra:     extra,
	})
}

func (e emitter) start(stage, msg string) {
	e.emit(stage, domain.PhaseStart, msg, nil)
}

func (e emitter) end(stage, msg string, extra map[string]any) {
	e.emit(stage, domain.PhaseEnd, msg, extra)
}

func (e emitter) info(stage, msg string, extra map[string]any) {
	e.emit(stage, domain.PhaseInfo, msg, extra)
}

func (e emitter) warn(stage, msg string, extra map[string]any) {
	e.emit(stage, domain.PhaseWarning, msg, extra)
}
