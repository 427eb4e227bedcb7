// Package search provides the search view for the TUI.
package search

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// Result actions.
const (
	ActionReindex = "Reindex"
	ActionResolve = "Resolve conflicts"
	ActionCancel  = "Cancel"
)

// resultLimit bounds a dashboard search.
const resultLimit = 50

// ActionMenu is the overlay listing tasks that can be run on a result.
type ActionMenu struct {
	actions  []string
	selected int
	result   *domain.SearchResult
}

// View is the search view with input, results list and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     textinput.Model
	list      *list.ResultList
	statusbar *status.Bar

	searchService driving.SearchService
	taskService   driving.TaskService
	ctx           context.Context

	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
	actionMenu *ActionMenu
}

// NewView creates a new search view. searchService may be nil when no
// search engine is configured.
func NewView(
	s *styles.Styles,
	km *keymap.KeyMap,
	searchService driving.SearchService,
	taskService driving.TaskService,
) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	ti := textinput.New()
	ti.Placeholder = "Search posts, media and feeds..."
	ti.CharLimit = 256
	ti.Width = 50
	ti.Focus()

	return &View{
		styles:        s,
		keymap:        km,
		input:         ti,
		list:          list.NewResultList(s),
		statusbar:     status.NewBar(s, km),
		searchService: searchService,
		taskService:   taskService,
		ctx:           context.Background(),
		width:         80,
		height:        24,
		focusInput:    true,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SearchCompleted:
		v.handleSearchCompleted(msg)
		return v, nil

	case messages.TaskSubmitted:
		if msg.Err != nil {
			v.statusbar.SetError(msg.Err)
			return v, nil
		}
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Submitted " + string(msg.Kind) + " task " + msg.ID)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.statusbar.SetError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if v.actionMenu != nil {
		return v.handleActionMenuKey(msg)
	}

	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			query := strings.TrimSpace(v.input.Value())
			if query == "" {
				return v, nil
			}
			v.statusbar.SetState(status.StateSearching)
			v.focusInput = false
			v.input.Blur()
			return v, v.performSearch(query)
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch {
	case msg.Type == tea.KeyEnter:
		if result := v.list.SelectedResult(); result != nil {
			v.actionMenu = &ActionMenu{
				actions: []string{ActionReindex, ActionResolve, ActionCancel},
				result:  result,
			}
		}
	case keymap.Matches(msg.String(), v.keymap.NewSearch):
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	default:
		v.list, _ = v.list.Update(msg)
	}
	return v, nil
}

func (v *View) handleActionMenuKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	menu := v.actionMenu
	switch msg.String() {
	case "up", "k":
		if menu.selected > 0 {
			menu.selected--
		}
	case "down", "j":
		if menu.selected < len(menu.actions)-1 {
			menu.selected++
		}
	case "enter":
		v.actionMenu = nil
		return v, v.executeAction(menu.actions[menu.selected], menu.result)
	case "esc":
		v.actionMenu = nil
	}
	return v, nil
}

// executeAction submits the task for the chosen action.
func (v *View) executeAction(action string, result *domain.SearchResult) tea.Cmd {
	var kind domain.TaskKind
	switch action {
	case ActionReindex:
		kind = domain.TaskReindex
	case ActionResolve:
		kind = domain.TaskResolve
	default:
		return nil
	}
	target := result.Document.ID

	return func() tea.Msg {
		if v.taskService == nil {
			return messages.TaskSubmitted{Kind: kind, Target: target, Err: ErrNoTaskService}
		}
		id, err := v.taskService.SubmitTask(v.ctx, kind, target, map[string]string{"reason": "dashboard"})
		return messages.TaskSubmitted{Kind: kind, Target: target, ID: id, Err: err}
	}
}

func (v *View) performSearch(query string) tea.Cmd {
	return func() tea.Msg {
		if v.searchService == nil {
			return messages.SearchCompleted{Err: ErrNoSearchService}
		}
		results, err := v.searchService.Search(v.ctx, query, domain.SearchOptions{Limit: resultLimit})
		return messages.SearchCompleted{Results: results, Err: err}
	}
}

func (v *View) handleSearchCompleted(msg messages.SearchCompleted) {
	if msg.Err != nil {
		v.err = msg.Err
		v.statusbar.SetError(msg.Err)
		return
	}
	v.err = nil
	v.list.SetResults(msg.Results)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetResultCount(len(msg.Results))
	v.statusbar.SetBindings(v.keymap.ResultsHelp())
	v.focusInput = false
	v.input.Blur()
}

// View renders the search view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("Search"), "")

	label := v.styles.Title.Render("Query: ")
	field := v.styles.InputField.Render(v.input.View())
	//nolint:misspell // lipgloss.Center is the library's spelling
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Center, label, field), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}
	sections = append(sections, v.list.View())

	if v.actionMenu != nil {
		sections = append(sections, "", v.renderActionMenu())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderActionMenu() string {
	lines := make([]string, 0, len(v.actionMenu.actions)+1)
	lines = append(lines, v.styles.Muted.Render(v.actionMenu.result.Document.ID))
	for i, action := range v.actionMenu.actions {
		if i == v.actionMenu.selected {
			lines = append(lines, v.styles.Selected.Render("> "+action))
		} else {
			lines = append(lines, v.styles.Normal.Render("  "+action))
		}
	}
	return v.styles.Border.Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	inputWidth := width - 12
	if inputWidth < 20 {
		inputWidth = 20
	}
	v.input.Width = inputWidth
	v.list.SetDimensions(width, height-10)
	v.statusbar.SetWidth(width)
}

// Query returns the current search query.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the search query.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Results returns the current search results.
func (v *View) Results() []domain.SearchResult {
	return v.list.Results()
}

// SelectedIndex returns the index of the selected result.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// ActionMenuOpen reports whether the action overlay is showing.
func (v *View) ActionMenuOpen() bool {
	return v.actionMenu != nil
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Status returns the view's status bar.
func (v *View) Status() *status.Bar {
	return v.statusbar
}

// Reset returns the view to input mode with no results.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetResults(nil)
	v.actionMenu = nil
	v.err = nil
	v.statusbar.Clear()
	v.statusbar.SetBindings(nil)
}
