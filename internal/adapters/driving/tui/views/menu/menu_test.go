package menu

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
)

func TestNewView_Items(t *testing.T) {
	v := NewView(nil, nil)

	labels := make([]string, 0, len(v.Items()))
	for _, item := range v.Items() {
		labels = append(labels, item.Label)
	}
	assert.Equal(t, []string{"Search", "Sources", "Tasks", "Help", "Quit"}, labels)
	assert.Equal(t, 0, v.Selected())
}

func TestView_NotReady(t *testing.T) {
	assert.Equal(t, "Initialising...", NewView(nil, nil).View())
}

func TestView_Navigation(t *testing.T) {
	v := NewView(nil, nil)

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 2, v.Selected())

	for i := 0; i < 10; i++ {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	}
	assert.Equal(t, len(v.Items())-1, v.Selected())

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, len(v.Items())-2, v.Selected())
}

func TestView_SelectTasks(t *testing.T) {
	v := NewView(nil, nil)
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewTasks}, cmd())
}

func TestView_QuitItem(t *testing.T) {
	v := NewView(nil, nil)
	for range v.Items() {
		v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	}

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestView_Render(t *testing.T) {
	v := NewView(nil, nil)
	v.SetDimensions(80, 24)

	out := v.View()

	assert.Contains(t, out, "Sercha Ingest")
	assert.Contains(t, out, "> 1 Search")
	assert.Contains(t, out, "[enter] select")
	assert.Contains(t, out, "query the index, reindex or resolve a record")
	assert.NotContains(t, out, "feed sources and crawl health", "hints show for the selected item only")

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	out = v.View()
	assert.Contains(t, out, "> 2 Sources")
	assert.Contains(t, out, "feed sources and crawl health")
	assert.NotContains(t, out, "query the index")
}

func TestView_DigitShortcut(t *testing.T) {
	v := NewView(nil, nil)

	v, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'2'}})

	require.NotNil(t, cmd)
	assert.Equal(t, 1, v.Selected())
	assert.Equal(t, messages.ViewChanged{View: messages.ViewSources}, cmd())

	_, cmd = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'9'}})
	assert.Nil(t, cmd, "digits past the last entry are ignored")
}
