package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultKeyMap_Keys(t *testing.T) {
	km := DefaultKeyMap()

	tests := []struct {
		key     string
		name    string
		matches bool
	}{
		{"q", "quit", Matches("q", km.Quit)},
		{"ctrl+c", "quit", Matches("ctrl+c", km.Quit)},
		{"x", "cancel task", Matches("x", km.CancelTask)},
		{"c", "crawl now", Matches("c", km.Crawl)},
		{"enter", "crawl now", Matches("enter", km.Crawl)},
		{"delete", "remove", Matches("delete", km.Remove)},
		{"f", "filter", Matches("f", km.Filter)},
		{"r", "reload", Matches("r", km.Refresh)},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.True(t, tt.matches)
		})
	}

	assert.False(t, Matches("x", km.Remove))
	assert.False(t, Matches("", km.Quit))
}

func TestKeyMap_HelpSets(t *testing.T) {
	km := DefaultKeyMap()

	assert.Len(t, km.ShortHelp(), 2)
	assert.Equal(t, "cancel task", km.TasksHelp()[1].Help().Desc)
	assert.Equal(t, "crawl now", km.SourcesHelp()[0].Help().Desc)
	assert.Equal(t, "new search", km.ResultsHelp()[0].Help().Desc)

	total := 0
	for _, group := range km.FullHelp() {
		total += len(group)
	}
	assert.Equal(t, 14, total)
}

func TestHelpLine(t *testing.T) {
	km := DefaultKeyMap()

	assert.Equal(t, "[esc] back  [q] quit", HelpLine(km.ShortHelp()))
	assert.Empty(t, HelpLine(nil))
}
