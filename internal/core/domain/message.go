package domain

import (
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Limits applied to chat inputs and outputs.
const (
	// QuoteMaxRunes caps quoted context before the ellipsis is appended.
	QuoteMaxRunes = 2000

	// ExcerptMaxRunes caps the text excerpt of a source attribution.
	ExcerptMaxRunes = 150
)

// Role identifies the author of a chat message.
type Role string

// Chat roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one persisted chat turn.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	Sources   []Source   `json:"sources,omitempty"`
	Stats     *ChatStats `json:"stats,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Source attributes part of an answer to a stored chunk.
type Source struct {
	FileName    string  `json:"file_name"`
	ChunkID     string  `json:"chunk_id"`
	Score       float64 `json:"score"`
	TextExcerpt string  `json:"text_excerpt"`
}

// SourceFrom converts a retrieved chunk into an attribution.
func SourceFrom(rc RetrievedChunk) Source {
	return Source{
		FileName:    rc.FileName,
		ChunkID:     rc.ChunkID,
		Score:       rc.Score,
		TextExcerpt: Truncate(rc.Content, ExcerptMaxRunes, ""),
	}
}

// ChatStats reports timings and token counts of one chat turn.
type ChatStats struct {
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TokensPerSecond  float64 `json:"tokens_per_second"`

	// Estimated is true when the provider reported no usage.
	Estimated bool `json:"estimated,omitempty"`

	RerankCandidates int     `json:"rerank_candidates,omitempty"`
	RerankSeconds    float64 `json:"rerank_seconds,omitempty"`
}

// TokenUsage is provider-reported token accounting.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatRequest is one user turn.
type ChatRequest struct {
	Message    string
	QuotedText string

	// History overrides the stored history when non-nil.
	History []Message
}

// ChatEventType distinguishes stream events.
type ChatEventType string

// Chat event types.
const (
	ChatEventToken ChatEventType = "token"
	ChatEventStage ChatEventType = "stage"
	ChatEventDone  ChatEventType = "done"
)

// StageInfo describes a retrieval stage that ran before generation.
type StageInfo struct {
	Name       string
	Candidates int
	Elapsed    time.Duration
}

// ChatResult is the terminal payload of a chat stream.
type ChatResult struct {
	FullText  string
	Sources   []Source
	Stats     ChatStats
	Cancelled bool
	Err       error
}

// ChatEvent is one element of a chat stream. Exactly one ChatEventDone
// event terminates every stream.
type ChatEvent struct {
	Type   ChatEventType
	Token  string
	Stage  *StageInfo
	Result *ChatResult
}

// ComposeQuery builds the query used for both retrieval and generation.
func ComposeQuery(message, quoted string) string {
	if strings.TrimSpace(quoted) == "" {
		return message
	}
	quoted = Truncate(quoted, QuoteMaxRunes, "...")
	return "Based on the following quote:\n> " + quoted + "\n\nMy question is: " + message
}

// Truncate shortens s to at most max runes and appends suffix when cut.
func Truncate(s string, max int, suffix string) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + suffix
}

// EstimateTokens approximates a token count from the character mix:
// CJK ideographs count 1.5 each, every other rune 0.3.
func EstimateTokens(text string) int {
	var total float64
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			total += 1.5
		} else {
			total += 0.3
		}
	}
	return int(math.Round(total))
}
