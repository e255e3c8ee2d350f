// Package anthropic provides an LLM service adapter using the Anthropic
// Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driven/llm/sse"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	anthropicVersion = "2023-06-01"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: API key is required")

// Config holds configuration for the Anthropic LLM service.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string

	// Timeout bounds connection setup and response headers.
	Timeout time.Duration

	HTTPClient *http.Client
}

// LLMService provides chat completion using /v1/messages.
type LLMService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Stream      bool      `json:"stream,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage usage     `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

// streamEvent covers the fields of every streamed event type we read.
type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage usage `json:"usage"`
	} `json:"message,omitempty"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Usage *usage    `json:"usage,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

// NewLLMService creates a new Anthropic LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: cfg.Timeout,
		}}
	}
	return &LLMService{
		client:  client,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// buildRequest moves system messages into the top-level system field.
func (s *LLMService) buildRequest(messages []driven.ChatMessage, opts driven.ChatOptions, stream bool) messagesRequest {
	req := messagesRequest{
		Model:       s.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	var system []string
	for _, m := range messages {
		if m.Role == string(domain.RoleSystem) {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, message{Role: m.Role, Content: m.Content})
	}
	req.System = strings.Join(system, "\n\n")
	return req
}

func (s *LLMService) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var out messagesResponse
		if json.Unmarshal(raw, &out) == nil && out.Error != nil {
			return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, bytes.TrimSpace(raw))
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
	body, err := json.Marshal(s.buildRequest(messages, opts, false))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	resp, err := s.do(ctx, http.MethodPost, "/v1/messages", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	var text strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return &driven.ChatResponse{
		Content: text.String(),
		Usage:   &domain.TokenUsage{PromptTokens: out.Usage.InputTokens, CompletionTokens: out.Usage.OutputTokens},
	}, nil
}

// ChatStream reads the server-sent event stream of /v1/messages.
func (s *LLMService) ChatStream(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (<-chan driven.StreamEvent, error) {
	body, err := json.Marshal(s.buildRequest(messages, opts, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	cancel := context.CancelFunc(func() {})
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	}
	resp, err := s.do(ctx, http.MethodPost, "/v1/messages", body)
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

func readStream(ctx context.Context, body io.Reader, events chan<- driven.StreamEvent) driven.StreamEvent {
	var tokens domain.TokenUsage
	stopped := false
	err := sse.Read(body, func(ev sse.Event) error {
		var se streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &se); err != nil {
			return fmt.Errorf("decode stream: %w", err)
		}
		switch se.Type {
		case "message_start":
			if se.Message != nil {
				tokens.PromptTokens = se.Message.Usage.InputTokens
			}
		case "content_block_delta":
			if se.Delta == nil || se.Delta.Text == "" {
				return nil
			}
			select {
			case events <- driven.StreamEvent{Type: driven.StreamToken, Token: se.Delta.Text}:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "message_delta":
			if se.Usage != nil {
				tokens.CompletionTokens = se.Usage.OutputTokens
			}
		case "message_stop":
			stopped = true
			return sse.ErrStop
		case "error":
			if se.Error != nil {
				return fmt.Errorf("anthropic error: %s: %s", se.Error.Type, se.Error.Message)
			}
			return errors.New("anthropic error")
		}
		return nil
	})
	switch {
	case ctx.Err() != nil:
		return driven.StreamEvent{Type: driven.StreamError, Err: ctx.Err()}
	case err != nil:
		return driven.StreamEvent{Type: driven.StreamError, Err: err}
	case !stopped:
		return driven.StreamEvent{Type: driven.StreamError, Err: io.ErrUnexpectedEOF}
	}
	return driven.StreamEvent{Type: driven.StreamDone, Usage: &tokens}
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists models, which validates the key without running inference.
func (s *LLMService) Ping(ctx context.Context) error {
	resp, err := s.do(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	return resp.Body.Close()
}

// Close releases resources.
func (s *LLMService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
