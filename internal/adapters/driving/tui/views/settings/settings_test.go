package settings

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

type fakeSettings struct {
	keys   []string
	values map[string]string
	setErr error
	sets   [][2]string
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		keys: []string{"chunk_size", "llm_api_key"},
		values: map[string]string{
			"chunk_size":  "512",
			"llm_api_key": "sk-1234567890abcd",
		},
	}
}

func (f *fakeSettings) Get() domain.Config { return domain.Config{} }
func (f *fakeSettings) Keys() []string     { return f.keys }
func (f *fakeSettings) Path() string       { return "/tmp/ragpro/config.toml" }
func (f *fakeSettings) Secret(key string) bool {
	return key == "llm_api_key"
}

func (f *fakeSettings) Value(key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", errors.New("unknown key")
	}
	return v, nil
}

func (f *fakeSettings) Set(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, [2]string{key, value})
	f.values[key] = value
	return nil
}

func loadedView(t *testing.T, svc *fakeSettings) *View {
	t.Helper()
	v := NewView(nil, svc)
	v.SetDimensions(100, 30)
	v.Update(v.Init()())
	return v
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestView_LoadsAndMasksSecrets(t *testing.T) {
	v := loadedView(t, newFakeSettings())

	view := v.View()

	assert.Contains(t, view, "chunk_size")
	assert.Contains(t, view, "512")
	assert.Contains(t, view, "sk-1...abcd")
	assert.NotContains(t, view, "sk-1234567890abcd")
	assert.Contains(t, view, "File: /tmp/ragpro/config.toml")
}

func TestView_NoService(t *testing.T) {
	v := NewView(nil, nil)
	v.SetDimensions(80, 24)

	v.Update(v.Init()())

	assert.Contains(t, v.View(), ErrNoSettingsService.Error())
}

func TestView_EditAndSave(t *testing.T) {
	svc := newFakeSettings()
	v := loadedView(t, svc)

	v.Update(key("enter"))
	require.True(t, v.Editing())
	assert.Equal(t, "512", v.input.Value())

	v.input.SetValue("800")
	_, cmd := v.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.False(t, v.Editing())

	_, reload := v.Update(cmd())
	require.NotNil(t, reload)
	v.Update(reload())

	assert.Equal(t, [][2]string{{"chunk_size", "800"}}, svc.sets)
	assert.Contains(t, v.View(), "chunk_size saved")
	assert.Contains(t, v.View(), "800")
}

func TestView_SecretEditStartsEmpty(t *testing.T) {
	v := loadedView(t, newFakeSettings())

	v.Update(key("j"))
	v.Update(key("enter"))

	require.True(t, v.Editing())
	assert.Empty(t, v.input.Value())
}

func TestView_EscCancelsEditThenGoesBack(t *testing.T) {
	svc := newFakeSettings()
	v := loadedView(t, svc)

	v.Update(key("enter"))
	_, cmd := v.Update(key("esc"))
	assert.Nil(t, cmd)
	assert.False(t, v.Editing())
	assert.Empty(t, svc.sets)

	_, cmd = v.Update(key("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}

func TestView_SaveErrorShown(t *testing.T) {
	svc := newFakeSettings()
	svc.setErr = domain.ErrInvalidInput
	v := loadedView(t, svc)

	v.Update(key("enter"))
	_, cmd := v.Update(key("enter"))
	v.Update(cmd())

	assert.Contains(t, v.View(), "Error: "+domain.ErrInvalidInput.Error())
}

func TestView_NavigationBounds(t *testing.T) {
	v := loadedView(t, newFakeSettings())

	v.Update(key("k"))
	assert.Equal(t, 0, v.selected)
	v.Update(key("j"))
	v.Update(key("j"))
	assert.Equal(t, 1, v.selected)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "****", MaskSecret("short"))
	assert.Equal(t, "abcd...wxyz", MaskSecret("abcdefghijklmnopqrstuvwxyz"))
}
