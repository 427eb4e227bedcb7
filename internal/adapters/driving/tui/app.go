package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/views/menu"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/views/sources"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/views/tasks"
)

// DefaultRefreshInterval is how often the sources and tasks views reload.
const DefaultRefreshInterval = 2 * time.Second

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles

	menuView    *menu.View
	searchView  *search.View
	sourcesView *sources.View
	tasksView   *tasks.View

	currentView messages.ViewType
	refresh     time.Duration
	err         error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		menuView:    menu.NewView(s, km),
		searchView:  search.NewView(s, km, ports.Search, ports.Tasks),
		sourcesView: sources.NewView(s, km, ports.Crawl),
		tasksView:   tasks.NewView(s, km, ports.Tasks),
		currentView: messages.ViewMenu,
		refresh:     DefaultRefreshInterval,
	}, nil
}

// WithContext sets the context passed to every service call.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.sourcesView.WithContext(ctx)
	a.tasksView.WithContext(ctx)
	return a
}

// WithRefreshInterval changes the auto-refresh period. Zero disables it.
func (a *App) WithRefreshInterval(d time.Duration) *App {
	a.refresh = d
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("sercha-ingest"),
		a.scheduleRefresh(),
	)
}

func (a *App) scheduleRefresh() tea.Cmd {
	if a.refresh <= 0 {
		return nil
	}
	return tea.Tick(a.refresh, func(time.Time) tea.Msg {
		return messages.RefreshTick{}
	})
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message router
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		return a, a.forwardKey(msg)

	case messages.ViewChanged:
		a.currentView = msg.View
		switch msg.View {
		case messages.ViewSearch:
			a.searchView.Reset()
			return a, a.searchView.Init()
		case messages.ViewSources:
			return a, a.sourcesView.Init()
		case messages.ViewTasks:
			return a, a.tasksView.Init()
		case messages.ViewMenu, messages.ViewHelp:
		}
		return a, nil

	case messages.RefreshTick:
		switch a.currentView {
		case messages.ViewSources:
			a.sourcesView, cmd = a.sourcesView.Update(msg)
		case messages.ViewTasks:
			a.tasksView, cmd = a.tasksView.Update(msg)
		case messages.ViewMenu, messages.ViewSearch, messages.ViewHelp:
		}
		return a, tea.Batch(cmd, a.scheduleRefresh())

	case messages.SearchCompleted, messages.TaskSubmitted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.SourcesLoaded, messages.SourceRemoved, messages.CrawlCompleted:
		a.sourcesView, cmd = a.sourcesView.Update(msg)
		return a, cmd

	case messages.TasksLoaded, messages.TaskCancelled:
		a.tasksView, cmd = a.tasksView.Update(msg)
		return a, cmd

	case messages.ErrorOccurred:
		a.err = msg.Err
		if a.currentView == messages.ViewSearch {
			a.searchView, cmd = a.searchView.Update(msg)
		}
		return a, cmd

	case messages.Quit:
		return a, tea.Quit
	}

	if a.currentView == messages.ViewSearch {
		a.searchView, cmd = a.searchView.Update(msg)
	}
	return a, cmd
}

// forwardKey routes a key press to the active view.
func (a *App) forwardKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewMenu:
		a.menuView, cmd = a.menuView.Update(msg)
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewSources:
		a.sourcesView, cmd = a.sourcesView.Update(msg)
	case messages.ViewTasks:
		a.tasksView, cmd = a.tasksView.Update(msg)
	case messages.ViewHelp:
		if msg.Type == tea.KeyEsc {
			a.currentView = messages.ViewMenu
		}
	}
	return cmd
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewSearch:
		return a.searchView.View()
	case messages.ViewSources:
		return a.sourcesView.View()
	case messages.ViewTasks:
		return a.tasksView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.menuView.View()
	}
}

func (a *App) viewHelp() string {
	return `Help

Navigation:
  j/k, ↑/↓    Move
  enter       Select
  esc         Back to Menu
  ctrl+c      Quit

Search:
  enter       Submit query, then open actions on a result
  n           New search

Sources:
  c, enter    Crawl now
  d           Remove source
  r           Reload

Tasks:
  f           Cycle status filter
  x           Cancel pending task
  r           Reload

[esc] back to menu`
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.menuView.SetDimensions(width, height)
	a.searchView.SetDimensions(width, height)
	a.sourcesView.SetDimensions(width, height)
	a.tasksView.SetDimensions(width, height)
}
