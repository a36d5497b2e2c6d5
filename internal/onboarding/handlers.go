package onboarding

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"neurodeck/internal/dispatch"
	"neurodeck/internal/logging"
)

// Handlers adapts the store to the dispatcher's delegated tool interface.
type Handlers struct {
	store *Store
}

// NewHandlers wraps a store.
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// Map returns the handler table keyed by tool name, ready to register on a
// session. Web tools are not included; those stay with the host.
func (h *Handlers) Map() map[string]dispatch.Handler {
	return map[string]dispatch.Handler{
		"get_onboarding_state":  dispatch.HandlerFunc(h.GetState),
		"set_workspace_root":    dispatch.HandlerFunc(h.SetWorkspaceRoot),
		"save_provider_key":     dispatch.HandlerFunc(h.SaveProviderKey),
		"set_model_preferences": dispatch.HandlerFunc(h.SetModelPreferences),
		"complete_onboarding":   dispatch.HandlerFunc(h.CompleteOnboarding),
		"memory_append":         dispatch.HandlerFunc(h.MemoryAppend),
		"memory_search":         dispatch.HandlerFunc(h.MemorySearch),
		"memory_get":            dispatch.HandlerFunc(h.MemoryGet),
	}
}

// State is the onboarding checkpoint summary returned to the model.
type State struct {
	WorkspaceRootSet  bool   `json:"workspace_root_set"`
	ProviderKeySaved  bool   `json:"provider_key_saved"`
	ModelPreferences  bool   `json:"model_preferences_set"`
	Completed         bool   `json:"completed"`
	PreferredProvider string `json:"preferred_provider,omitempty"`
	PreferredModel    string `json:"preferred_model,omitempty"`
}

func (h *Handlers) state(ctx context.Context) (State, error) {
	var st State

	root, err := h.store.getSetting(ctx, keyWorkspaceRoot)
	if err != nil {
		return st, err
	}
	st.WorkspaceRootSet = root != ""

	n, err := h.store.providerCount(ctx)
	if err != nil {
		return st, err
	}
	st.ProviderKeySaved = n > 0

	st.PreferredProvider, err = h.store.getSetting(ctx, keyProvider)
	if err != nil {
		return st, err
	}
	st.PreferredModel, err = h.store.getSetting(ctx, keyModel)
	if err != nil {
		return st, err
	}
	st.ModelPreferences = st.PreferredProvider != ""

	completed, err := h.store.getSetting(ctx, keyCompleted)
	if err != nil {
		return st, err
	}
	st.Completed = completed == "true"

	return st, nil
}

// GetState reports the checkpoint state as JSON.
func (h *Handlers) GetState(ctx context.Context, _ map[string]any) (string, error) {
	st, err := h.state(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read onboarding state: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetWorkspaceRoot records the workspace root. The directory must exist.
func (h *Handlers) SetWorkspaceRoot(ctx context.Context, args map[string]any) (string, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("workspace root must be an absolute path: %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("workspace root is not accessible: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root is not a directory: %s", path)
	}

	if err := h.store.setSetting(ctx, keyWorkspaceRoot, path); err != nil {
		return "", fmt.Errorf("failed to save workspace root: %w", err)
	}
	logging.Onboarding("workspace root set: %s", path)
	return fmt.Sprintf("Workspace root set to %s", path), nil
}

// SaveProviderKey stores a credential. The key never appears in the result.
func (h *Handlers) SaveProviderKey(ctx context.Context, args map[string]any) (string, error) {
	provider, _ := args["provider"].(string)
	apiKey, _ := args["api_key"].(string)
	if provider == "" {
		return "", fmt.Errorf("provider is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", fmt.Errorf("api_key is required")
	}

	if err := h.store.SaveProviderKey(ctx, provider, apiKey); err != nil {
		return "", fmt.Errorf("failed to save provider key: %w", err)
	}
	logging.Onboarding("provider key saved: provider=%s", provider)
	return fmt.Sprintf("API key saved for provider %s", provider), nil
}

// SetModelPreferences records the preferred provider and model.
func (h *Handlers) SetModelPreferences(ctx context.Context, args map[string]any) (string, error) {
	provider, _ := args["provider"].(string)
	if provider == "" {
		return "", fmt.Errorf("provider is required")
	}
	model, _ := args["model"].(string)

	if err := h.store.setSetting(ctx, keyProvider, provider); err != nil {
		return "", fmt.Errorf("failed to save preferences: %w", err)
	}
	if model != "" {
		if err := h.store.setSetting(ctx, keyModel, model); err != nil {
			return "", fmt.Errorf("failed to save preferences: %w", err)
		}
	}

	if model == "" {
		return fmt.Sprintf("Preferred provider set to %s", provider), nil
	}
	return fmt.Sprintf("Preferred provider set to %s (model %s)", provider, model), nil
}

// CompleteOnboarding marks onboarding done once the required checkpoints
// are in place: a workspace root and at least one provider key.
func (h *Handlers) CompleteOnboarding(ctx context.Context, _ map[string]any) (string, error) {
	st, err := h.state(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read onboarding state: %w", err)
	}

	var missing []string
	if !st.WorkspaceRootSet {
		missing = append(missing, "set_workspace_root")
	}
	if !st.ProviderKeySaved {
		missing = append(missing, "save_provider_key")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("onboarding incomplete: still required: %s", strings.Join(missing, ", "))
	}

	if err := h.store.setSetting(ctx, keyCompleted, "true"); err != nil {
		return "", fmt.Errorf("failed to record completion: %w", err)
	}
	logging.Onboarding("onboarding completed")
	return "Onboarding complete", nil
}

// Completed reports whether onboarding has been finished in a previous run.
func (h *Handlers) Completed(ctx context.Context) (bool, error) {
	v, err := h.store.getSetting(ctx, keyCompleted)
	return v == "true", err
}

// WorkspaceRoot returns the stored workspace root, or "".
func (h *Handlers) WorkspaceRoot(ctx context.Context) (string, error) {
	return h.store.getSetting(ctx, keyWorkspaceRoot)
}

// MemoryAppend stores a durable note and returns its id.
func (h *Handlers) MemoryAppend(ctx context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("content is required")
	}

	var tags []string
	if raw, ok := args["tags"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
	}

	m := Memory{
		ID:        uuid.NewString(),
		Content:   content,
		Tags:      strings.Join(tags, ","),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := h.store.AppendMemory(ctx, m); err != nil {
		return "", fmt.Errorf("failed to append memory: %w", err)
	}
	return fmt.Sprintf("Remembered (id %s)", m.ID), nil
}

// MemorySearch returns matching notes, newest first.
func (h *Handlers) MemorySearch(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	limit := 10
	switch v := args["limit"].(type) {
	case int:
		limit = v
	case float64:
		limit = int(v)
	}
	if limit <= 0 {
		limit = 10
	}

	matches, err := h.store.SearchMemories(ctx, query, limit)
	if err != nil {
		return "", fmt.Errorf("memory search failed: %w", err)
	}
	if len(matches) == 0 {
		return "No memories match: " + query, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d match(es):\n", len(matches))
	for _, m := range matches {
		fmt.Fprintf(&b, "[%s] %s", m.ID, m.Content)
		if m.Tags != "" {
			fmt.Fprintf(&b, " (tags: %s)", m.Tags)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// MemoryGet fetches one note by id.
func (h *Handlers) MemoryGet(ctx context.Context, args map[string]any) (string, error) {
	id, _ := args["id"].(string)
	if id == "" {
		return "", fmt.Errorf("id is required")
	}

	m, err := h.store.GetMemory(ctx, id)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no memory with id %s", id)
	}
	if err != nil {
		return "", fmt.Errorf("memory fetch failed: %w", err)
	}

	if m.Tags != "" {
		return fmt.Sprintf("[%s] %s (tags: %s)", m.ID, m.Content, m.Tags), nil
	}
	return fmt.Sprintf("[%s] %s", m.ID, m.Content), nil
}
