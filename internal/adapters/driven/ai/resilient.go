package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// GuardConfig tunes the breaker and limiter placed around a provider.
type GuardConfig struct {
	// RequestsPerSecond is the sustained request rate. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// DefaultGuardConfig returns the limits used for remote providers.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{RequestsPerSecond: 10, Burst: 20, OpenTimeout: 60 * time.Second}
}

// Guard trips after repeated provider failures and paces requests.
type Guard struct {
	breaker *gobreaker.TwoStepCircuitBreaker
	limiter *rate.Limiter
}

// NewGuard creates a guard named after the provider it protects.
func NewGuard(name string, cfg GuardConfig) *Guard {
	g := &Guard{
		breaker: gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 5,
			Interval:    10 * time.Second,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && ratio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit %s: %s -> %s", name, from, to)
			},
		}),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return g
}

// State returns the breaker state name.
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// begin waits for the limiter and asks the breaker for admission. The
// returned function must be called with the outcome.
func (g *Guard) begin(ctx context.Context) (func(error) error, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, Classify(ctx, err)
		}
	}
	done, err := g.breaker.Allow()
	if err != nil {
		return nil, fmt.Errorf("%w: %s circuit open: %w", domain.ErrProviderFailure, g.breaker.Name(), err)
	}
	return func(err error) error {
		err = Classify(ctx, err)
		// Caller cancellation says nothing about provider health.
		done(err == nil || errors.Is(err, domain.ErrCancelled))
		return err
	}, nil
}

// Do runs fn under the guard.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	finish, err := g.begin(ctx)
	if err != nil {
		return err
	}
	return finish(fn(ctx))
}

// Classify maps a provider error onto the domain error classes.
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrProviderTimeout) || errors.Is(err, domain.ErrProviderFailure) ||
		errors.Is(err, domain.ErrCancelled) {
		return err
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrCancelled, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
}

// Ensure the guarded wrappers implement their interfaces.
var (
	_ driven.EmbeddingService = (*guardedEmbedder)(nil)
	_ driven.LLMService       = (*guardedLLM)(nil)
	_ driven.Reranker         = (*guardedReranker)(nil)
)

type guardedEmbedder struct {
	driven.EmbeddingService
	guard *Guard
}

// GuardEmbedder wraps an embedding service with a guard.
func GuardEmbedder(svc driven.EmbeddingService, g *Guard) driven.EmbeddingService {
	return &guardedEmbedder{EmbeddingService: svc, guard: g}
}

func (e *guardedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.EmbeddingService.Embed(ctx, text)
		return err
	})
	return out, err
}

func (e *guardedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = e.EmbeddingService.EmbedBatch(ctx, texts)
		return err
	})
	return out, err
}

type guardedLLM struct {
	driven.LLMService
	guard *Guard
}

// GuardLLM wraps an LLM service with a guard. Stream errors are classified
// and count towards the breaker.
func GuardLLM(svc driven.LLMService, g *Guard) driven.LLMService {
	return &guardedLLM{LLMService: svc, guard: g}
}

func (l *guardedLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (*driven.ChatResponse, error) {
	var out *driven.ChatResponse
	err := l.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.LLMService.Chat(ctx, messages, opts)
		return err
	})
	return out, err
}

func (l *guardedLLM) ChatStream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamEvent, error) {
	finish, err := l.guard.begin(ctx)
	if err != nil {
		return nil, err
	}
	upstream, err := l.LLMService.ChatStream(ctx, messages, opts)
	if err != nil {
		return nil, finish(err)
	}

	out := make(chan driven.StreamEvent, cap(upstream))
	go func() {
		defer close(out)
		var outcome error
		for ev := range upstream {
			if ev.Type == driven.StreamError {
				ev.Err = Classify(ctx, ev.Err)
				outcome = ev.Err
			}
			out <- ev
		}
		_ = finish(outcome)
	}()
	return out, nil
}

type guardedReranker struct {
	driven.Reranker
	guard *Guard
}

// GuardReranker wraps a reranker with a guard.
func GuardReranker(r driven.Reranker, g *Guard) driven.Reranker {
	return &guardedReranker{Reranker: r, guard: g}
}

func (r *guardedReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	var out []float64
	err := r.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = r.Reranker.Rerank(ctx, query, texts)
		return err
	})
	return out, err
}
