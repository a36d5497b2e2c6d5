package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"neurodeck/internal/catalog"
	"neurodeck/internal/config"
	"neurodeck/internal/dispatch"
	"neurodeck/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestSession(t *testing.T, onboarding bool) *Session {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Workspace.DefaultRoot = t.TempDir()
	cfg.Onboarding.Required = onboarding

	s, err := New(cfg)
	require.NoError(t, err)
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tools.Tier = "ultra"
	cfg.Workspace.DefaultRoot = t.TempDir()

	_, err := New(cfg)
	require.Error(t, err)
}

func TestOnboardingLifecycle(t *testing.T) {
	s := newTestSession(t, true)
	ctx := context.Background()

	s.RegisterHandler("complete_onboarding", dispatch.HandlerFunc(
		func(context.Context, map[string]any) (string, error) {
			return "onboarding complete", nil
		}))

	require.True(t, s.OnboardingRequired())

	// Generic tools are gated until completion.
	res := s.Execute(ctx, dispatch.Request{Name: "read_file", Arguments: map[string]any{"path": "a.txt"}})
	require.True(t, res.IsError)
	assert.Contains(t, res.Text, "blocked during required onboarding")

	res = s.Execute(ctx, dispatch.Request{Name: "complete_onboarding", Arguments: map[string]any{}})
	require.False(t, res.IsError, res.Text)

	assert.False(t, s.OnboardingRequired())
	assert.True(t, s.Catalog().Has("read_file"))
	assert.False(t, s.Catalog().Restricted())
}

func TestFailedCompletionKeepsGate(t *testing.T) {
	s := newTestSession(t, true)

	// No handler registered: the call is denied and the gate stays up.
	res := s.Execute(context.Background(), dispatch.Request{Name: "complete_onboarding", Arguments: map[string]any{}})
	require.True(t, res.IsError)
	assert.True(t, s.OnboardingRequired())
}

func TestSetWorkspaceRootSwitchesSandbox(t *testing.T) {
	s := newTestSession(t, true)
	ctx := context.Background()

	newRoot := t.TempDir()
	s.RegisterHandler("set_workspace_root", dispatch.HandlerFunc(
		func(_ context.Context, args map[string]any) (string, error) {
			return "workspace root set", nil
		}))
	s.RegisterHandler("complete_onboarding", dispatch.HandlerFunc(
		func(context.Context, map[string]any) (string, error) {
			return "done", nil
		}))

	res := s.Execute(ctx, dispatch.Request{Name: "set_workspace_root", Arguments: map[string]any{"path": newRoot}})
	require.False(t, res.IsError, res.Text)

	res = s.Execute(ctx, dispatch.Request{Name: "complete_onboarding", Arguments: map[string]any{}})
	require.False(t, res.IsError, res.Text)

	// Writes land under the new root.
	res = s.Execute(ctx, dispatch.Request{Name: "write_file", Arguments: map[string]any{
		"path": "hello.txt", "content": "hi",
	}})
	require.False(t, res.IsError, res.Text)
	assert.Contains(t, res.Text, newRoot)
}

func TestBeginTurnResetsReadBudget(t *testing.T) {
	s := newTestSession(t, false)
	ctx := context.Background()

	res := s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": "<p>hi</p>"}})
	require.False(t, res.IsError, res.Text)

	first := s.Execute(ctx, dispatch.Request{Name: "read_screen", Arguments: map[string]any{}})
	require.False(t, first.IsError, first.Text)

	second := s.Execute(ctx, dispatch.Request{Name: "read_screen", Arguments: map[string]any{}})
	require.True(t, second.IsError)

	s.BeginTurn()

	fresh := s.Execute(ctx, dispatch.Request{Name: "read_screen", Arguments: map[string]any{}})
	require.False(t, fresh.IsError, "new turn must grant a fresh free read: %s", fresh.Text)
}

func TestRenderStateSurvivesTurns(t *testing.T) {
	s := newTestSession(t, false)
	ctx := context.Background()

	s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": "<p>one</p>"}})
	s.BeginTurn()
	s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": "<p>two</p>"}})

	rev, html := s.Screen()
	assert.Equal(t, 2, rev, "revision must not reset across turns")
	assert.Equal(t, "<p>two</p>", html)
}

func TestObserversSeeEveryAcceptedRender(t *testing.T) {
	s := newTestSession(t, false)
	ctx := context.Background()

	var events []render.StreamEvent
	s.Subscribe(func(ev render.StreamEvent) { events = append(events, ev) })

	s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": "<p>a</p>"}})
	s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": " "}})
	s.Execute(ctx, dispatch.Request{Name: "emit_screen", Arguments: map[string]any{"html": "<p>b</p>"}})

	require.Len(t, events, 2, "rejected renders must not reach observers")
	assert.Equal(t, 1, events[0].Revision)
	assert.Equal(t, 2, events[1].Revision)
}

func TestSetTierRebuildsCatalog(t *testing.T) {
	s := newTestSession(t, false)

	assert.False(t, s.Catalog().Has("delete_file"))
	s.SetTier(catalog.TierExperimental)
	assert.True(t, s.Catalog().Has("delete_file"))
	s.SetTier(catalog.TierNone)
	assert.False(t, s.Catalog().Has("write_file"))
}

func TestApplyConfigHotReload(t *testing.T) {
	s := newTestSession(t, false)

	cfg := config.DefaultConfig()
	cfg.Workspace.DefaultRoot = t.TempDir()
	cfg.Tools.Tier = "experimental"
	require.NoError(t, s.ApplyConfig(cfg))
	assert.True(t, s.Catalog().Has("http_request"))

	bad := config.DefaultConfig()
	bad.Tools.Tier = "ultra"
	require.Error(t, s.ApplyConfig(bad))
	assert.True(t, s.Catalog().Has("http_request"), "failed reload must keep the previous catalog")
}

func TestGuidanceTracksCatalog(t *testing.T) {
	s := newTestSession(t, true)

	got := s.GuidancePrompt()
	assert.Contains(t, got, "onboarding")
	assert.NotContains(t, got, "read_screen is optional")

	s.RegisterHandler("complete_onboarding", dispatch.HandlerFunc(
		func(context.Context, map[string]any) (string, error) { return "ok", nil }))
	res := s.Execute(context.Background(), dispatch.Request{Name: "complete_onboarding", Arguments: map[string]any{}})
	require.False(t, res.IsError, res.Text)

	got = s.GuidancePrompt()
	assert.Contains(t, got, "read_screen is optional")
}
