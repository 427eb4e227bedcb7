// Package tasks provides the task queue view for the TUI.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
	"github.com/custodia-labs/sercha-ingest/internal/core/ports/driving"
)

// pageSize bounds the number of tasks loaded per refresh.
const pageSize = 100

// ErrNoTaskService is returned by commands when no task service is set.
var ErrNoTaskService = errors.New("task service not available")

// filters is the cycle order of the status filter. Empty shows all.
var filters = []domain.TaskStatus{"", domain.TaskPending, domain.TaskRunning, domain.TaskFailed, domain.TaskDone}

// View shows the task queue and lets the user cancel pending tasks.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	statusbar *status.Bar
	service   driving.TaskService
	ctx       context.Context

	tasks    []domain.Task
	stats    domain.QueueStats
	filter   int
	selected int
	width    int
	height   int
	err      error
	loading  bool
}

// NewView creates a new task queue view.
func NewView(s *styles.Styles, km *keymap.KeyMap, service driving.TaskService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s, km)
	bar.SetBindings(km.TasksHelp())
	return &View{
		styles:    s,
		keymap:    km,
		statusbar: bar,
		service:   service,
		ctx:       context.Background(),
		width:     80,
		height:    24,
	}
}

// WithContext sets the context for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the first page.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	filter := domain.TaskFilter{Status: filters[v.filter], Limit: pageSize}
	return func() tea.Msg {
		if v.service == nil {
			return messages.TasksLoaded{Err: ErrNoTaskService}
		}
		tasks, err := v.service.ListTasks(v.ctx, filter)
		if err != nil {
			return messages.TasksLoaded{Err: err}
		}
		stats, err := v.service.QueueStats(v.ctx)
		return messages.TasksLoaded{Tasks: tasks, Stats: stats, Err: err}
	}
}

// Update handles messages for the task view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.TasksLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.tasks = msg.Tasks
		v.stats = msg.Stats
		stats := msg.Stats
		v.statusbar.SetQueueStats(&stats)
		if v.selected >= len(v.tasks) {
			v.selected = max(len(v.tasks)-1, 0)
		}
		return v, nil

	case messages.TaskCancelled:
		if msg.Err != nil {
			if errors.Is(msg.Err, domain.ErrTaskNotPending) {
				v.statusbar.SetError(fmt.Errorf("task %s is no longer pending", msg.ID))
			} else {
				v.statusbar.SetError(msg.Err)
			}
			return v, nil
		}
		v.statusbar.SetState(status.StateReady)
		v.statusbar.SetMessage("Cancelled " + msg.ID)
		return v, v.load()

	case messages.RefreshTick:
		return v, v.load()
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
		if v.selected < len(v.tasks)-1 {
			v.selected++
		}
	case keymap.Matches(key, v.keymap.Filter):
		v.filter = (v.filter + 1) % len(filters)
		v.selected = 0
		v.loading = true
		return v, v.load()
	case keymap.Matches(key, v.keymap.CancelTask):
		if t := v.selectedTask(); t != nil && t.Status == domain.TaskPending {
			return v, v.cancel(t.ID)
		}
	case keymap.Matches(key, v.keymap.Refresh):
		v.loading = true
		return v, v.load()
	}
	return v, nil
}

func (v *View) selectedTask() *domain.Task {
	if v.selected < 0 || v.selected >= len(v.tasks) {
		return nil
	}
	return &v.tasks[v.selected]
}

func (v *View) cancel(id string) tea.Cmd {
	return func() tea.Msg {
		if v.service == nil {
			return messages.TaskCancelled{ID: id, Err: ErrNoTaskService}
		}
		return messages.TaskCancelled{ID: id, Err: v.service.CancelTask(v.ctx, id)}
	}
}

// View renders the task queue.
func (v *View) View() string {
	var b strings.Builder
	b.WriteString(v.styles.Title.Render("Tasks"))
	b.WriteString("  ")
	b.WriteString(v.styles.Muted.Render("filter: " + v.FilterLabel()))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.tasks) == 0:
		b.WriteString(v.styles.Muted.Render("Loading tasks..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render("Error: " + v.err.Error()))
	case len(v.tasks) == 0:
		b.WriteString(v.styles.Muted.Render("No tasks."))
	default:
		b.WriteString(v.renderRows())
	}

	b.WriteString("\n\n")
	b.WriteString(v.statusbar.View())
	return b.String()
}

func (v *View) renderRows() string {
	visible := v.height - 6
	if visible < 1 {
		visible = 1
	}
	start := 0
	if v.selected >= visible {
		start = v.selected - visible + 1
	}
	end := min(start+visible, len(v.tasks))

	maxTarget := v.width - 40
	if maxTarget < 12 {
		maxTarget = 12
	}

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		t := &v.tasks[i]
		target := t.Target
		if len(target) > maxTarget {
			target = target[:maxTarget-3] + "..."
		}
		attempts := fmt.Sprintf("%d/%d", t.Attempts, t.MaxAttempts)
		if i == v.selected {
			line := fmt.Sprintf("> %-8s %-13s %-5s %s", t.Status, t.Kind, attempts, target)
			lines = append(lines, v.styles.Selected.Render(line))
			if t.LastError != "" {
				lines = append(lines, v.styles.Error.Render("    "+t.LastError))
			}
			continue
		}
		lines = append(lines, "  "+
			v.styles.TaskStatus(t.Status).Render(fmt.Sprintf("%-8s", t.Status))+" "+
			v.styles.Normal.Render(fmt.Sprintf("%-13s %-5s %s", t.Kind, attempts, target)))
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.statusbar.SetWidth(width)
}

// FilterLabel names the active status filter.
func (v *View) FilterLabel() string {
	if f := filters[v.filter]; f != "" {
		return string(f)
	}
	return "all"
}

// Filter returns the active status filter, empty for all.
func (v *View) Filter() domain.TaskStatus {
	return filters[v.filter]
}

// Tasks returns the loaded tasks.
func (v *View) Tasks() []domain.Task {
	return v.tasks
}

// Stats returns the last loaded queue counters.
func (v *View) Stats() domain.QueueStats {
	return v.stats
}

// SelectedIndex returns the selected row.
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
