// Package menu is the dashboard's landing view.
package menu

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/styles"
)

// Item is one menu entry. Entries with Quit set exit the dashboard.
type Item struct {
	Label string
	Hint  string
	View  messages.ViewType
	Quit  bool
}

var defaultItems = []Item{
	{Label: "Search", Hint: "query the index, reindex or resolve a record", View: messages.ViewSearch},
	{Label: "Sources", Hint: "feed sources and crawl health", View: messages.ViewSources},
	{Label: "Tasks", Hint: "the background task queue", View: messages.ViewTasks},
	{Label: "Help", View: messages.ViewHelp},
	{Label: "Quit", Quit: true},
}

// View lists the dashboard sections.
type View struct {
	styles   *styles.Styles
	keymap   *keymap.KeyMap
	items    []Item
	selected int
	width    int
	height   int
	ready    bool
}

// NewView creates the menu. Nil styles or keymap fall back to defaults.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles: s,
		keymap: km,
		items:  defaultItems,
		width:  80,
		height: 24,
	}
}

// Update moves the selection or opens the selected section. Digits jump
// straight to the matching entry.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)

	case tea.KeyMsg:
		k := msg.String()
		switch {
		case keymap.Matches(k, v.keymap.Up):
			if v.selected > 0 {
				v.selected--
			}
		case keymap.Matches(k, v.keymap.Down):
			if v.selected < len(v.items)-1 {
				v.selected++
			}
		case keymap.Matches(k, v.keymap.Select):
			return v, v.open(v.items[v.selected])
		case keymap.Matches(k, v.keymap.Quit):
			return v, tea.Quit
		case len(k) == 1 && k[0] >= '1' && int(k[0]-'1') < len(v.items):
			v.selected = int(k[0] - '1')
			return v, v.open(v.items[v.selected])
		}
	}
	return v, nil
}

func (v *View) open(item Item) tea.Cmd {
	if item.Quit {
		return tea.Quit
	}
	return func() tea.Msg { return messages.ViewChanged{View: item.View} }
}

// View renders the menu.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Sercha Ingest"))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render("Pipeline dashboard"))
	b.WriteString("\n\n")

	for i, item := range v.items {
		label := fmt.Sprintf("%d %s", i+1, item.Label)
		if i != v.selected {
			b.WriteString("  " + v.styles.Normal.Render(label) + "\n")
			continue
		}
		b.WriteString("> " + v.styles.Subtitle.Render(label))
		if item.Hint != "" {
			b.WriteString("  " + v.styles.Muted.Render(item.Hint))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render(keymap.HelpLine([]key.Binding{v.keymap.Up, v.keymap.Down, v.keymap.Select, v.keymap.Quit})))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Items returns the menu entries.
func (v *View) Items() []Item {
	return v.items
}

// Selected returns the index of the highlighted entry.
func (v *View) Selected() int {
	return v.selected
}
