package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func TestSettingsShow(t *testing.T) {
	out, err := execute(t, &Services{Settings: newMockSettings()}, "", "settings")

	require.NoError(t, err)
	assert.Regexp(t, `chunk_size\s+512`, out)
	assert.Regexp(t, `llm_api_key\s+sk-a\.\.\.mnop`, out)
	assert.Regexp(t, `llm_model\s+\(not set\)`, out)
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "File: /data/config.toml")
}

func TestSettingsSet(t *testing.T) {
	svc := newMockSettings()

	out, err := execute(t, &Services{Settings: svc}, "", "settings", "set", "chunk_size", "800")

	require.NoError(t, err)
	assert.Equal(t, "800", svc.values["chunk_size"])
	assert.Contains(t, out, "chunk_size = 800")
}

func TestSettingsSet_SecretMasked(t *testing.T) {
	out, err := execute(t, &Services{Settings: newMockSettings()}, "",
		"settings", "set", "llm_api_key", "sk-zyxwvutsrqponm")

	require.NoError(t, err)
	assert.Contains(t, out, "llm_api_key = sk-z...ponm")
}

func TestSettingsSet_Invalid(t *testing.T) {
	_, err := execute(t, &Services{Settings: newMockSettings()}, "", "settings", "set", "bogus", "1")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsPath(t *testing.T) {
	out, err := execute(t, &Services{Settings: newMockSettings()}, "", "settings", "path")

	require.NoError(t, err)
	assert.Contains(t, out, "/data/config.toml")
}

func TestSettingsKey_FromPipe(t *testing.T) {
	svc := newMockSettings()

	out, err := execute(t, &Services{Settings: svc}, "  sk-from-stdin-1234  \n", "settings", "key")

	require.NoError(t, err)
	assert.Equal(t, "sk-from-stdin-1234", svc.values["llm_api_key"])
	assert.Contains(t, out, "llm_api_key = sk-f...1234")
}

func TestSettingsKey_Empty(t *testing.T) {
	_, err := execute(t, &Services{Settings: newMockSettings()}, "\n", "settings", "key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no key entered")
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"short", "****"},
		{"12345678", "****"},
		{"123456789", "1234...6789"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskSecret(tt.in), tt.in)
	}
}
