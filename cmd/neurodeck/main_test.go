package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neurodeck/internal/config"
	"neurodeck/internal/dispatch"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Workspace.DefaultRoot = t.TempDir()
	cfg.Onboarding.DatabasePath = filepath.Join(t.TempDir(), "state.db")
	return cfg
}

func TestNewSessionWiresHandlers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Onboarding.Required = true

	sess, store, err := newSession(cfg)
	require.NoError(t, err)
	defer store.Close()

	// get_onboarding_state is delegated and must have a handler.
	res := sess.Execute(context.Background(), dispatch.Request{Name: "get_onboarding_state", Arguments: map[string]any{}})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, "workspace_root_set")
}

func TestNewSessionSkipsGateWhenAlreadyCompleted(t *testing.T) {
	cfg := testConfig(t)
	cfg.Onboarding.Required = true

	// First run: complete onboarding through the handlers.
	sess, store, err := newSession(cfg)
	require.NoError(t, err)
	ctx := context.Background()

	res := sess.Execute(ctx, dispatch.Request{Name: "set_workspace_root", Arguments: map[string]any{"path": cfg.Workspace.DefaultRoot}})
	require.False(t, res.IsError, res.Text)
	res = sess.Execute(ctx, dispatch.Request{Name: "save_provider_key", Arguments: map[string]any{"provider": "anthropic", "api_key": "k"}})
	require.False(t, res.IsError, res.Text)
	res = sess.Execute(ctx, dispatch.Request{Name: "complete_onboarding", Arguments: map[string]any{}})
	require.False(t, res.IsError, res.Text)
	store.Close()

	// Second run against the same database starts unrestricted.
	cfg.Onboarding.Required = true
	sess, store, err = newSession(cfg)
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, sess.OnboardingRequired())
	assert.True(t, sess.Catalog().Has("read_file"))
}
