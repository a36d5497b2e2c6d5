package onboarding

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandlers(store)
}

func TestGetStateInitiallyEmpty(t *testing.T) {
	h := newTestHandlers(t)

	out, err := h.GetState(context.Background(), nil)
	require.NoError(t, err)

	var st State
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.WorkspaceRootSet)
	assert.False(t, st.ProviderKeySaved)
	assert.False(t, st.Completed)
}

func TestSetWorkspaceRoot(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()
	dir := t.TempDir()

	out, err := h.SetWorkspaceRoot(ctx, map[string]any{"path": dir})
	require.NoError(t, err)
	assert.Contains(t, out, dir)

	root, err := h.WorkspaceRoot(ctx)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestSetWorkspaceRootValidation(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	_, err := h.SetWorkspaceRoot(ctx, map[string]any{"path": "relative/dir"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absolute")

	_, err = h.SetWorkspaceRoot(ctx, map[string]any{"path": filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)

	_, err = h.SetWorkspaceRoot(ctx, map[string]any{})
	require.Error(t, err)
}

func TestSaveProviderKeyNeverEchoesKey(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	const secret = "sk-ant-REDACTED"
	out, err := h.SaveProviderKey(ctx, map[string]any{"provider": "anthropic", "api_key": secret})
	require.NoError(t, err)
	assert.NotContains(t, out, secret, "tool result must not leak the credential")
	assert.Contains(t, out, "anthropic")

	stored, err := h.store.ProviderKey(ctx, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, secret, stored)
}

func TestSaveProviderKeyUpsert(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	_, err := h.SaveProviderKey(ctx, map[string]any{"provider": "openai", "api_key": "first"})
	require.NoError(t, err)
	_, err = h.SaveProviderKey(ctx, map[string]any{"provider": "openai", "api_key": "second"})
	require.NoError(t, err)

	stored, err := h.store.ProviderKey(ctx, "openai")
	require.NoError(t, err)
	assert.Equal(t, "second", stored)
}

func TestCompleteOnboardingRequiresCheckpoints(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	_, err := h.CompleteOnboarding(ctx, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set_workspace_root")
	assert.Contains(t, err.Error(), "save_provider_key")

	_, err = h.SetWorkspaceRoot(ctx, map[string]any{"path": t.TempDir()})
	require.NoError(t, err)

	_, err = h.CompleteOnboarding(ctx, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "set_workspace_root")

	_, err = h.SaveProviderKey(ctx, map[string]any{"provider": "anthropic", "api_key": "k"})
	require.NoError(t, err)

	out, err := h.CompleteOnboarding(ctx, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "complete")

	done, err := h.Completed(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestModelPreferences(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	out, err := h.SetModelPreferences(ctx, map[string]any{"provider": "anthropic", "model": "claude-sonnet-4-5"})
	require.NoError(t, err)
	assert.Contains(t, out, "claude-sonnet-4-5")

	stateJSON, err := h.GetState(ctx, nil)
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal([]byte(stateJSON), &st))
	assert.True(t, st.ModelPreferences)
	assert.Equal(t, "anthropic", st.PreferredProvider)
	assert.Equal(t, "claude-sonnet-4-5", st.PreferredModel)
}

func TestMemoryLifecycle(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	out, err := h.MemoryAppend(ctx, map[string]any{
		"content": "the user prefers dark themes",
		"tags":    []any{"ui", "preferences"},
	})
	require.NoError(t, err)

	// Result carries the generated id.
	start := strings.Index(out, "(id ")
	require.Greater(t, start, 0, "append result should carry an id: %s", out)
	id := strings.TrimSuffix(out[start+len("(id "):], ")")

	got, err := h.MemoryGet(ctx, map[string]any{"id": id})
	require.NoError(t, err)
	assert.Contains(t, got, "dark themes")
	assert.Contains(t, got, "ui")

	search, err := h.MemorySearch(ctx, map[string]any{"query": "dark"})
	require.NoError(t, err)
	assert.Contains(t, search, id)

	none, err := h.MemorySearch(ctx, map[string]any{"query": "zebra"})
	require.NoError(t, err)
	assert.Contains(t, none, "No memories match")
}

func TestMemorySearchLimit(t *testing.T) {
	h := newTestHandlers(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := h.MemoryAppend(ctx, map[string]any{"content": "shared keyword note"})
		require.NoError(t, err)
	}

	out, err := h.MemorySearch(ctx, map[string]any{"query": "shared keyword", "limit": 2})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2 match(es)"), out)
}

func TestMemoryGetUnknownID(t *testing.T) {
	h := newTestHandlers(t)

	_, err := h.MemoryGet(context.Background(), map[string]any{"id": "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no memory")
}

func TestHandlerMapCoversDelegatedNames(t *testing.T) {
	h := newTestHandlers(t)
	m := h.Map()

	for _, name := range []string{
		"get_onboarding_state", "set_workspace_root", "save_provider_key",
		"set_model_preferences", "complete_onboarding",
		"memory_append", "memory_search", "memory_get",
	} {
		assert.Contains(t, m, name)
	}
}
