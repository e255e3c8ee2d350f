package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func cosine(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestNew(t *testing.T) {
	svc, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, 512, svc.Dimensions())

	svc, err = New("hash-64")
	require.NoError(t, err)
	assert.Equal(t, 64, svc.Dimensions())
}

func TestParseDimensions_Invalid(t *testing.T) {
	for _, model := range []string{"nomic-embed-text", "hash-", "hash-abc", "hash-4", "hash-99999"} {
		_, err := ParseDimensions(model)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, model)
	}
}

func TestParseDimensions_ErrorNamesTheProblem(t *testing.T) {
	for _, model := range []string{"nomic-embed-text", "hash-", "hash-x"} {
		_, err := ParseDimensions(model)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hash-<dim>", model)
	}

	_, err := ParseDimensions("hash-4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 8 and 8192")
}

func TestEmbed_DeterministicAndNormalised(t *testing.T) {
	svc, err := New("hash-128")
	require.NoError(t, err)
	ctx := context.Background()

	a, err := svc.Embed(ctx, "The quick brown fox")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "the QUICK brown fox!")
	require.NoError(t, err)

	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, math.Sqrt(cosine(a, a)), 1e-5)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	svc, err := New("hash-512")
	require.NoError(t, err)
	ctx := context.Background()

	query, _ := svc.Embed(ctx, "invoice payment terms")
	near, _ := svc.Embed(ctx, "the payment terms of each invoice are thirty days")
	far, _ := svc.Embed(ctx, "a recipe for lemon cake")

	assert.Greater(t, cosine(query, near), cosine(query, far))
}

func TestEmbed_Empty(t *testing.T) {
	svc, err := New("hash-16")
	require.NoError(t, err)
	v, err := svc.Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestEmbedBatch(t *testing.T) {
	svc, err := New("hash-32")
	require.NoError(t, err)
	out, err := svc.EmbedBatch(context.Background(), []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, out[0], out[2])
	assert.NotEqual(t, out[0], out[1])
}

func TestEmbed_Cancelled(t *testing.T) {
	svc, err := New("hash-32")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.EmbedBatch(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"don't", "panic", "don't panic"}, terms("Don't panic"))
	assert.Equal(t, []string{"向", "量", "向 量"}, terms("向量"))
	assert.Empty(t, terms(""))
}
