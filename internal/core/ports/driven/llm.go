package driven

import (
	"context"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

// LLMService provides chat completion.
//
// Implementations may include:
//   - OpenAI and OpenAI-compatible servers
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat conducts a multi-turn conversation and returns the full reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*ChatResponse, error)

	// ChatStream conducts a multi-turn conversation, delivering tokens as
	// they are generated. The channel carries zero or more StreamToken
	// events followed by exactly one StreamDone or StreamError event, then
	// is closed. Cancelling ctx stops generation.
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamEvent, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// Timeout bounds the whole request. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// ChatResponse is a complete, non-streamed reply.
type ChatResponse struct {
	Content string

	// Usage is nil when the provider does not report token counts.
	Usage *domain.TokenUsage
}

// StreamEventType distinguishes streamed events.
type StreamEventType string

// Stream event types.
const (
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one element of a streamed reply.
type StreamEvent struct {
	Type  StreamEventType
	Token string

	// Usage may be set on the StreamDone event.
	Usage *domain.TokenUsage

	// Err is set on the StreamError event.
	Err error
}
