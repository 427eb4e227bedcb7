package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

func TestTaskService_SubmitAndStatus(t *testing.T) {
	ctx := context.Background()
	d, store, _ := newTestDispatcher(t, 1)
	svc := NewTaskService(d, store)

	id, err := svc.SubmitTask(ctx, domain.TaskReindex, string(postGUID("1")), map[string]string{"reason": "manual"})
	require.NoError(t, err)

	task, err := svc.TaskStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, "manual", task.Payload["reason"])

	_, err = svc.TaskStatus(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SubmitTask(ctx, domain.TaskReindex, "not-a-guid", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestTaskService_CancelAndList(t *testing.T) {
	ctx := context.Background()
	d, store, _ := newTestDispatcher(t, 1)
	svc := NewTaskService(d, store)

	a, err := svc.SubmitTask(ctx, domain.TaskReindex, string(postGUID("1")), nil)
	require.NoError(t, err)
	_, err = svc.SubmitTask(ctx, domain.TaskReindex, string(postGUID("2")), nil)
	require.NoError(t, err)

	require.NoError(t, svc.CancelTask(ctx, a))

	failed, err := svc.ListTasks(ctx, domain.TaskFilter{Status: domain.TaskFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, a, failed[0].ID)

	stats, err := svc.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.QueueStats{Pending: 1, Failed: 1}, stats)
}

func TestTaskService_TriggerResolve(t *testing.T) {
	ctx := context.Background()
	d, store, _ := newTestDispatcher(t, 1)
	svc := NewTaskService(d, store)

	id, err := svc.TriggerResolve(ctx, postGUID("1"))
	require.NoError(t, err)
	task, _ := svc.TaskStatus(ctx, id)
	assert.Equal(t, domain.TaskResolve, task.Kind)
	assert.Equal(t, "manual", task.Payload["trigger"])

	_, err = svc.TriggerResolve(ctx, "post:nope")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
