// Package sources provides the feed sources view for the TUI.
package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// ErrNoCrawlService is returned by commands when no crawl service is set.
var ErrNoCrawlService = errors.New("crawl service not available")

// View lists feed sources with their crawl health.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar
	crawl     driving.CrawlService
	ctx       context.Context

	sources   []domain.FeedSource
	schedules map[string]domain.CrawlSchedule
	crawling  map[string]bool
	selected  int
	width     int
	height    int
	err       error
	loading   bool
}

// NewView creates a new sources view.
func NewView(s *styles.Styles, km *keymap.KeyMap, crawl driving.CrawlService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s, km)
	bar.SetBindings(km.SourcesHelp())
	return &View{
		styles:    s,
		keymap:    km,
		statusbar: bar,
		crawl:     crawl,
		ctx:       context.Background(),
		schedules: make(map[string]domain.CrawlSchedule),
		crawling:  make(map[string]bool),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the sources.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadSources()
}

func (v *View) loadSources() tea.Cmd {
	return func() tea.Msg {
		if v.crawl == nil {
			return messages.SourcesLoaded{Err: ErrNoCrawlService}
		}
		sources, err := v.crawl.ListSources(v.ctx)
		if err != nil {
			return messages.SourcesLoaded{Err: err}
		}
		schedules, err := v.crawl.Schedules(v.ctx)
		return messages.SourcesLoaded{Sources: sources, Schedules: schedules, Err: err}
	}
}

// Update handles messages for the sources view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SourcesLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.sources = msg.Sources
		v.schedules = make(map[string]domain.CrawlSchedule, len(msg.Schedules))
		for _, s := range msg.Schedules {
			v.schedules[s.SourceID] = s
		}
		if v.selected >= len(v.sources) {
			v.selected = max(len(v.sources)-1, 0)
		}
		return v, nil

	case messages.SourceRemoved:
		if msg.Err != nil {
			v.statusbar.SetError(msg.Err)
			return v, nil
		}
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Removed " + msg.ID)
		return v, v.loadSources()

	case messages.CrawlCompleted:
		delete(v.crawling, msg.SourceID)
		switch {
		case msg.Err != nil:
			v.statusbar.SetError(msg.Err)
		case msg.Result != nil:
			v.statusbar.SetState(status.StateReady)
			v.statusbar.SetMessage(summarise(msg.SourceID, msg.Result))
		}
		return v, v.loadSources()

	case messages.RefreshTick:
		return v, v.loadSources()
	}
	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	switch {
	case key == "esc":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewMenu} }
	case key == "up" || key == "k":
		if v.selected > 0 {
			v.selected--
		}
	case key == "down" || key == "j":
		if v.selected < len(v.sources)-1 {
			v.selected++
		}
	case keymap.Matches(key, v.keymap.Crawl):
		if src := v.selectedSource(); src != nil && !v.crawling[src.ID] {
			v.crawling[src.ID] = true
			v.statusbar.SetState(status.StateLoading)
			return v, v.crawlNow(src.ID)
		}
	case keymap.Matches(key, v.keymap.Remove):
		if src := v.selectedSource(); src != nil {
			return v, v.removeSource(src.ID)
		}
	case keymap.Matches(key, v.keymap.Refresh):
		v.loading = true
		return v, v.loadSources()
	}
	return v, nil
}

func (v *View) selectedSource() *domain.FeedSource {
	if v.selected < 0 || v.selected >= len(v.sources) {
		return nil
	}
	return &v.sources[v.selected]
}

func (v *View) crawlNow(id string) tea.Cmd {
	return func() tea.Msg {
		if v.crawl == nil {
			return messages.CrawlCompleted{SourceID: id, Err: ErrNoCrawlService}
		}
		result, err := v.crawl.CrawlNow(v.ctx, id)
		return messages.CrawlCompleted{SourceID: id, Result: result, Err: err}
	}
}

func (v *View) removeSource(id string) tea.Cmd {
	return func() tea.Msg {
		if v.crawl == nil {
			return messages.SourceRemoved{ID: id, Err: ErrNoCrawlService}
		}
		return messages.SourceRemoved{ID: id, Err: v.crawl.RemoveSource(v.ctx, id)}
	}
}

func summarise(id string, r *domain.CrawlResult) string {
	switch {
	case r.NotModified:
		return id + ": not modified"
	case !r.Success:
		return id + ": " + r.Error
	default:
		return fmt.Sprintf("%s: %d items, %d written", id, r.ItemsSeen, r.ItemsWritten)
	}
}

// View renders the sources view.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Sources"))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.sources) == 0:
		b.WriteString(v.styles.Muted.Render("Loading sources..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.sources) == 0:
		b.WriteString(v.styles.Muted.Render("No sources configured. Add one with `sercha-ingest source add`."))
	default:
		for i := range v.sources {
			b.WriteString(v.renderSource(i, &v.sources[i]))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.statusbar.View())
	return b.String()
}

// renderSource renders a source line and its schedule line.
func (v *View) renderSource(index int, src *domain.FeedSource) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}
	name := src.Name
	if name == "" {
		name = src.URL
	}
	maxName := v.width - 16
	if maxName < 10 {
		maxName = 10
	}
	if len(name) > maxName {
		name = name[:maxName-3] + "..."
	}

	state := "enabled"
	if !src.Enabled {
		state = "disabled"
	}
	if v.crawling[src.ID] {
		state = "crawling"
	}

	var line string
	if index == v.selected {
		line = v.styles.Selected.Render(fmt.Sprintf("%s%s [%s]", indicator, name, state))
	} else {
		line = v.styles.Normal.Render(indicator+name) + " " + v.styles.Muted.Render("["+state+"]")
	}

	sched, ok := v.schedules[src.ID]
	if !ok {
		return line + "\n" + v.styles.Muted.Render("    not scheduled")
	}
	detail := "    next " + formatNext(sched.NextRun)
	if !sched.LastSuccess.IsZero() {
		detail += ", last ok " + sched.LastSuccess.Local().Format(time.Kitchen)
	}
	health := v.styles.CrawlHealth(sched.ConsecutiveFailures)
	if sched.LastError != "" {
		detail += fmt.Sprintf(", %d failures: %s", sched.ConsecutiveFailures, sched.LastError)
	}
	return line + "\n" + health.Render(detail)
}

func formatNext(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 2 15:04")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.statusbar.SetWidth(width)
}

// Sources returns the current list of sources.
func (v *View) Sources() []domain.FeedSource {
	return v.sources
}

// SelectedIndex returns the currently selected source index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}

// Status returns the view's status bar.
func (v *View) Status() *status.Bar {
	return v.statusbar
}
