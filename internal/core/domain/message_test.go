package domain

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestComposeQuery(t *testing.T) {
	assert.Equal(t, "What?", ComposeQuery("What?", ""))
	assert.Equal(t, "What?", ComposeQuery("What?", "   "))

	got := ComposeQuery("Who wrote it?", "To be or not to be")
	assert.Equal(t, "Based on the following quote:\n> To be or not to be\n\nMy question is: Who wrote it?", got)
}

func TestComposeQuery_TruncatesLongQuote(t *testing.T) {
	quote := strings.Repeat("é", QuoteMaxRunes+10)
	got := ComposeQuery("q", quote)

	assert.Contains(t, got, strings.Repeat("é", QuoteMaxRunes)+"...")
	assert.NotContains(t, got, strings.Repeat("é", QuoteMaxRunes+1))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3, "..."))
	assert.Equal(t, "ab...", Truncate("abc", 2, "..."))
	assert.Equal(t, "日本", Truncate("日本語", 2, ""))
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hello", 2},   // 5 * 0.3 = 1.5 -> 2
		{"你好", 3},      // 2 * 1.5
		{"hi 你好世界", 7}, // 3*0.3 + 4*1.5 = 6.9
		{strings.Repeat("a", 10), 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.text), tt.text)
	}
}

func TestSourceFrom_ExcerptLimit(t *testing.T) {
	rc := RetrievedChunk{ChunkID: "c1", FileName: "a.txt", Content: strings.Repeat("x", 400), Score: 0.5}
	src := SourceFrom(rc)

	assert.Equal(t, "a.txt", src.FileName)
	assert.Equal(t, "c1", src.ChunkID)
	assert.Equal(t, ExcerptMaxRunes, utf8.RuneCountInString(src.TextExcerpt))
}
