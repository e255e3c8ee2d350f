package status

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/keymap"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/adapters/driving/tui/styles"
	"github.com/zhaosj0315/rag-pro-max-sub000/internal/core/domain"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
	assert.Empty(t, bar.Corpus())
	assert.Nil(t, bar.Init())
}

func TestNewBar_NilDependencies(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.NotNil(t, bar.styles)
	assert.NotNil(t, bar.keymap)

	updated, cmd := bar.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, bar, updated)
	assert.Nil(t, cmd)
}

func TestBar_View(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *Bar)
		want    []string
		notWant []string
	}{
		{
			name:    "ready without corpus",
			setup:   func(*Bar) {},
			want:    []string{"Ready", "q: quit"},
			notWant: []string{"send"},
		},
		{
			name: "chatting",
			setup: func(b *Bar) {
				b.SetCorpus("papers")
				b.SetState(StateThinking)
			},
			want: []string{"papers", "Thinking...", "enter: send", "ctrl+x: stop"},
		},
		{
			name: "error with message",
			setup: func(b *Bar) {
				b.SetState(StateError)
				b.SetMessage("boom")
			},
			want: []string{"Error: boom"},
		},
		{
			name: "answered with stats",
			setup: func(b *Bar) {
				b.SetState(StateAnswered)
				b.SetStats(domain.ChatStats{ElapsedSeconds: 2.5, TokensPerSecond: 12})
			},
			want: []string{"2.5s", "12.0 tok/s"},
		},
		{
			name: "load",
			setup: func(b *Bar) {
				b.SetLoad(domain.SchedulerStatus{
					State:  domain.StateWarn,
					Sample: domain.ResourceSample{CPUPercent: 72, MemPercent: 41},
				})
			},
			want: []string{"cpu 72% mem 41%"},
		},
		{
			name:  "cancelled",
			setup: func(b *Bar) { b.SetState(StateCancelled) },
			want:  []string{"Stopped"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(200)
			tt.setup(bar)

			view := bar.View()
			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, view, w)
			}
		})
	}
}

func TestBar_Clear(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetCorpus("papers")
	bar.SetState(StateError)
	bar.SetMessage("boom")
	bar.SetStats(domain.ChatStats{ElapsedSeconds: 1})

	bar.Clear()

	assert.Equal(t, StateReady, bar.State())
	assert.Empty(t, bar.Message())
	assert.Nil(t, bar.stats)
	assert.Equal(t, "papers", bar.Corpus())
}

func TestBar_Width(t *testing.T) {
	bar := NewBar(nil, nil)
	assert.Equal(t, 80, bar.Width())

	bar.SetWidth(120)
	assert.Equal(t, 120, bar.Width())
}
