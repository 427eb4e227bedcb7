package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui"
	"github.com/custodia-labs/sercha-ingest/internal/adapters/driving/tui/messages"
)

func TestTUICmd_Flags(t *testing.T) {
	refresh := tuiCmd.Flags().Lookup("refresh")
	require.NotNil(t, refresh)
	assert.Equal(t, tui.DefaultRefreshInterval.String(), refresh.DefValue)

	run := tuiCmd.Flags().Lookup("run")
	require.NotNil(t, run)
	assert.Equal(t, "false", run.DefValue)
}

func TestNewTUIApp(t *testing.T) {
	setupTestServices(t)
	tuiRefresh = time.Second

	app, err := newTUIApp(context.Background())

	require.NoError(t, err)
	assert.Equal(t, messages.ViewMenu, app.CurrentView())
}

func TestNewTUIApp_SearchOptional(t *testing.T) {
	ts := setupTestServices(t)
	SetServices(&Services{Tasks: ts.tasks, Crawl: ts.crawl})

	_, err := newTUIApp(context.Background())

	assert.NoError(t, err)
}

func TestNewTUIApp_NotConfigured(t *testing.T) {
	setupTestServices(t)
	SetServices(&Services{})

	_, err := newTUIApp(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, tui.ErrMissingTaskService)
}
