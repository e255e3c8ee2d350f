// Package ollama provides an LLM service adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	BaseURL string
	Model   string

	// Timeout bounds connection setup and response headers. Generation
	// time is bounded per call by ChatOptions.Timeout.
	Timeout time.Duration

	HTTPClient *http.Client
}

// LLMService provides chat completion using the /api/chat endpoint.
type LLMService struct {
	client  *http.Client
	baseURL string
	model   string
}

type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  options       `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatChunk is one NDJSON line of a streamed reply, or the whole
// non-streamed reply.
type chatChunk struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error,omitempty"`
}

func (c chatChunk) usage() *domain.TokenUsage {
	if c.PromptEvalCount == 0 && c.EvalCount == 0 {
		return nil
	}
	return &domain.TokenUsage{PromptTokens: c.PromptEvalCount, CompletionTokens: c.EvalCount}
}

// NewLLMService creates a new Ollama LLM service.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.Timeout,
		}}
	}
	return &LLMService{client: client, baseURL: strings.TrimSuffix(cfg.BaseURL, "/"), model: cfg.Model}
}

func (s *LLMService) post(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) (*http.Response, error) {
	msgs := make([]chatMessage, len(messages))
	for i, m := range messages {
		msgs[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: msgs,
		Stream:   stream,
		Options:  options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama: send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp, nil
}

// Chat returns the full reply in one response.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (*driven.ChatResponse, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	resp, err := s.post(ctx, messages, opts, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out chatChunk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", out.Error)
	}
	return &driven.ChatResponse{Content: out.Message.Content, Usage: out.usage()}, nil
}

// ChatStream reads the NDJSON stream of /api/chat.
func (s *LLMService) ChatStream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamEvent, error) {
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	resp, err := s.post(ctx, messages, opts, true)
	if err != nil {
		cancel()
		return nil, err
	}

	events := make(chan driven.StreamEvent, 16)
	go func() {
		defer close(events)
		defer cancel()
		defer resp.Body.Close()
		events <- readStream(ctx, resp.Body, events)
	}()
	return events, nil
}

// readStream forwards tokens and returns the terminal event.
func readStream(ctx context.Context, body io.Reader, events chan<- driven.StreamEvent) driven.StreamEvent {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return driven.StreamEvent{Type: driven.StreamError, Err: fmt.Errorf("decode stream: %w", err)}
		}
		if chunk.Error != "" {
			return driven.StreamEvent{Type: driven.StreamError, Err: fmt.Errorf("ollama error: %s", chunk.Error)}
		}
		if chunk.Message.Content != "" {
			select {
			case events <- driven.StreamEvent{Type: driven.StreamToken, Token: chunk.Message.Content}:
			case <-ctx.Done():
				return driven.StreamEvent{Type: driven.StreamError, Err: ctx.Err()}
			}
		}
		if chunk.Done {
			return driven.StreamEvent{Type: driven.StreamDone, Usage: chunk.usage()}
		}
	}
	if ctx.Err() != nil {
		return driven.StreamEvent{Type: driven.StreamError, Err: ctx.Err()}
	}
	if err := scanner.Err(); err != nil {
		return driven.StreamEvent{Type: driven.StreamError, Err: fmt.Errorf("read stream: %w", err)}
	}
	return driven.StreamEvent{Type: driven.StreamError, Err: io.ErrUnexpectedEOF}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping checks the /api/tags endpoint without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
