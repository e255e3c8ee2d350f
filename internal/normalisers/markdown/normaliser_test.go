package markdown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func TestNormaliser_Normalise(t *testing.T) {
	src := "# Capitals\n\nSome **bold** and *italic* text with a [link](http://x.y).\n\n" +
		"- Paris\n- Tokyo\n\n1. first\n\n> quoted\n\n```go\nfmt.Println(\"hi\")\n```\n\n---\n\n![map](map.png) and `code`"

	res, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "caps.md", Content: []byte(src)})
	require.NoError(t, err)

	content := res.Document.Content
	assert.Equal(t, "Capitals", res.Document.Metadata["title"])
	assert.Contains(t, content, "Some bold and italic text with a link.")
	assert.Contains(t, content, "Paris\nTokyo")
	assert.Contains(t, content, "first")
	assert.Contains(t, content, "quoted")
	assert.Contains(t, content, `fmt.Println("hi")`)
	assert.Contains(t, content, "map and code")
	assert.NotContains(t, content, "```")
	assert.NotContains(t, content, "**")
	assert.NotContains(t, content, "# ")
	assert.NotContains(t, content, "http://x.y")
}

func TestNormaliser_TitleFallback(t *testing.T) {
	res, err := New().Normalise(context.Background(), &domain.RawDocument{URI: "/a/release_notes-v2.md", Content: []byte("no heading")})
	require.NoError(t, err)
	assert.Equal(t, "release notes v2", res.Document.Metadata["title"])
}

func TestNormaliser_Nil(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
