package corpora

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/messages"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

type fakeCorpora struct {
	list    []domain.CorpusStats
	listErr error
	delErr  error
	deleted []string
}

func (f *fakeCorpora) List(context.Context) ([]domain.CorpusStats, error) {
	return f.list, f.listErr
}

func (f *fakeCorpora) Stats(_ context.Context, name string) (*domain.CorpusStats, error) {
	return &domain.CorpusStats{Name: name}, nil
}

func (f *fakeCorpora) Manifest(context.Context, string) (*domain.Manifest, error) {
	return &domain.Manifest{}, nil
}

func (f *fakeCorpora) Create(context.Context, string) error         { return nil }
func (f *fakeCorpora) Rename(context.Context, string, string) error { return nil }

func (f *fakeCorpora) Delete(_ context.Context, name string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, name)
	kept := f.list[:0]
	for _, c := range f.list {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	f.list = kept
	return nil
}

func newFake() *fakeCorpora {
	now := time.Now()
	return &fakeCorpora{list: []domain.CorpusStats{
		{Name: "papers", FileCount: 3, ChunkCount: 40, BytesOnDisk: 2048, ModifiedAt: now},
		{Name: "notes", FileCount: 1, ChunkCount: 2, ModifiedAt: now.Add(-time.Hour)},
	}}
}

func loaded(t *testing.T, svc *fakeCorpora) *View {
	t.Helper()
	v := NewView(nil, svc)
	v.SetDimensions(120, 30)
	cmd := v.Init()
	require.NotNil(t, cmd)
	v.Update(cmd())
	return v
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestView_ListsCorpora(t *testing.T) {
	v := loaded(t, newFake())

	view := v.View()

	assert.Contains(t, view, "> papers")
	assert.Contains(t, view, "3 files, 40 chunks, 2.0 kB")
	assert.Contains(t, view, "notes")
}

func TestView_Empty(t *testing.T) {
	v := loaded(t, &fakeCorpora{})

	assert.Contains(t, v.View(), "No corpora yet")
	assert.Nil(t, v.SelectedCorpus())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
}

func TestView_NilService(t *testing.T) {
	v := NewView(nil, nil)
	assert.Nil(t, v.Init())
}

func TestView_SelectEmitsCorpusSelected(t *testing.T) {
	v := loaded(t, newFake())

	v.Update(runes("j"))
	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.CorpusSelected{Name: "notes"}, cmd())
}

func TestView_DeleteRequiresConfirmation(t *testing.T) {
	svc := newFake()
	v := loaded(t, svc)

	v.Update(runes("d"))
	assert.Contains(t, v.View(), "Delete papers and its conversation? [y/N]")

	_, cmd := v.Update(runes("n"))
	assert.Nil(t, cmd)
	assert.Empty(t, svc.deleted)

	v.Update(runes("d"))
	_, cmd = v.Update(runes("y"))
	require.NotNil(t, cmd)
	_, reload := v.Update(cmd())
	require.NotNil(t, reload)
	v.Update(reload())

	assert.Equal(t, []string{"papers"}, svc.deleted)
	assert.NotContains(t, v.View(), "papers")
	assert.Equal(t, "notes", v.SelectedCorpus().Name)
}

func TestView_DeleteErrorShown(t *testing.T) {
	svc := newFake()
	svc.delErr = domain.ErrCorpusBusy
	v := loaded(t, svc)

	v.Update(runes("d"))
	_, cmd := v.Update(runes("y"))
	v.Update(cmd())

	assert.Contains(t, v.View(), "Error: "+domain.ErrCorpusBusy.Error())
}

func TestView_EscGoesToMenu(t *testing.T) {
	v := loaded(t, newFake())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewMenu}, cmd())
}
