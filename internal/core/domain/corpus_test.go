package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCorpusName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"docs", true},
		{"my-corpus_2.v1", true},
		{"A", true},
		{"", false},
		{".", false},
		{"..", false},
		{".hidden", false},
		{"a/b", false},
		{"has space", false},
		{string(make([]byte, 129)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCorpusName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidInput))
			}
		})
	}
}

func TestManifest_ChunkCountAndLookup(t *testing.T) {
	m := Manifest{Files: []FileRecord{
		{Path: "a.txt", ChunkIDs: []string{"1", "2"}},
		{Path: "sub/a.txt", ChunkIDs: []string{"3"}},
	}}

	assert.Equal(t, 3, m.ChunkCount())

	rec, ok := m.Lookup("sub/a.txt")
	assert.True(t, ok)
	assert.Equal(t, []string{"3"}, rec.ChunkIDs)

	_, ok = m.Lookup("missing.txt")
	assert.False(t, ok)
}

func TestFingerprint_Matches(t *testing.T) {
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	fp := Fingerprint{Hash: "abc", MTime: mtime, Size: 10}

	assert.True(t, fp.Matches(10, mtime, "abc"))
	assert.False(t, fp.Matches(11, mtime, "abc"))
	assert.False(t, fp.Matches(10, mtime.Add(time.Second), "abc"))
	assert.False(t, fp.Matches(10, mtime, "abd"))
}

func TestDescriptor_Compatible(t *testing.T) {
	d := Descriptor{VectorDim: 512}
	assert.True(t, d.Compatible(512))
	assert.False(t, d.Compatible(1024))
}

func TestDocument_PageAt(t *testing.T) {
	doc := Document{PageOffsets: []int{0, 100, 250}}
	assert.Equal(t, 1, doc.PageAt(0))
	assert.Equal(t, 1, doc.PageAt(99))
	assert.Equal(t, 2, doc.PageAt(100))
	assert.Equal(t, 3, doc.PageAt(1000))

	plain := Document{}
	assert.Equal(t, 0, plain.PageAt(10))
}
