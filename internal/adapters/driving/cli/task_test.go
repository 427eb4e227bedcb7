package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestTaskCmd_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range taskCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"submit", "status", "cancel", "list"}, names)
}

func TestTaskSubmitCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "task", "submit", "reindex", "post:1", "-p", "reason=manual", "--payload", "by=ops")

	require.NoError(t, err)
	assert.Contains(t, out, "Submitted task task-1")
	require.Len(t, ts.tasks.submitted, 1)
	assert.Equal(t, domain.TaskReindex, ts.tasks.submitted[0].Kind)
	assert.Equal(t, "post:1", ts.tasks.submitted[0].Target)
	assert.Equal(t, map[string]string{"reason": "manual", "by": "ops"}, ts.tasks.submitted[0].Payload)
}

func TestTaskSubmitCmd_Errors(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "task", "submit", "reindex")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg(s)")

	_, err = execute(t, "task", "submit", "reindex", "post:1", "-p", "novalue")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	taskPayload = nil
	ts.tasks.err = domain.ErrSchedulerOverload
	_, err = execute(t, "task", "submit", "reindex", "post:1")
	assert.ErrorIs(t, err, domain.ErrSchedulerOverload)
}

func TestTaskStatusCmd(t *testing.T) {
	ts := setupTestServices(t)
	ts.tasks.task = &domain.Task{
		ID:          "task-7",
		Kind:        domain.TaskReindex,
		Target:      "post:1",
		Status:      domain.TaskPending,
		Attempts:    1,
		MaxAttempts: 3,
		LastError:   "connection refused",
		NotBefore:   t0.Add(time.Minute),
		UpdatedAt:   t0,
	}

	out, err := execute(t, "task", "status", "task-7")

	require.NoError(t, err)
	assert.Contains(t, out, "Status:    pending")
	assert.Contains(t, out, "Attempts:  1/3")
	assert.Contains(t, out, "Error:     connection refused")
	assert.Contains(t, out, "Next try:")
}

func TestTaskStatusCmd_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.tasks.task = &domain.Task{ID: "task-7", Status: domain.TaskDone}

	out, err := execute(t, "task", "status", "task-7", "--json")

	require.NoError(t, err)
	var got domain.Task
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, domain.TaskDone, got.Status)
}

func TestTaskStatusCmd_NotFound(t *testing.T) {
	ts := setupTestServices(t)
	ts.tasks.err = domain.ErrNotFound

	_, err := execute(t, "task", "status", "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskCancelCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "task", "cancel", "task-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled task task-1")

	ts.tasks.err = domain.ErrTaskNotPending
	_, err = execute(t, "task", "cancel", "task-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer pending")
}

func TestTaskListCmd(t *testing.T) {
	ts := setupTestServices(t)
	ts.tasks.tasks = []domain.Task{
		{ID: "a", Kind: domain.TaskReindex, Target: "post:1", Status: domain.TaskFailed, LastError: "boom"},
	}
	ts.tasks.stats = domain.QueueStats{Pending: 2, Failed: 1}

	out, err := execute(t, "task", "list", "--status", "failed", "-n", "5")

	require.NoError(t, err)
	assert.Contains(t, out, "Queue: 2 pending, 0 running, 0 done, 1 failed")
	assert.Contains(t, out, "post:1")
	assert.Contains(t, out, "(boom)")
	assert.Equal(t, domain.TaskFailed, ts.tasks.filter.Status)
	assert.Equal(t, 5, ts.tasks.filter.Limit)
}

func TestTaskListCmd_Empty(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "task", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "No tasks.")
}

func TestResolveCmd(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "resolve", "post:9")

	require.NoError(t, err)
	assert.Contains(t, out, "Submitted resolve task task-1")
	require.Len(t, ts.tasks.submitted, 1)
	assert.Equal(t, domain.TaskResolve, ts.tasks.submitted[0].Kind)
}

func TestTaskCmds_NotConfigured(t *testing.T) {
	setupTestServices(t)
	SetServices(&Services{})

	for _, args := range [][]string{
		{"task", "status", "x"},
		{"task", "cancel", "x"},
		{"task", "list"},
		{"resolve", "x"},
	} {
		_, err := execute(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "not configured")
	}
}
