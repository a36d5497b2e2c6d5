// Package catalog produces the ordered tool list advertised to the model.
//
// The catalog is a two-variant choice selected per dispatch call: while
// onboarding is required it is a fixed, order-significant restricted list
// that ignores the capability tier entirely; otherwise it is the tier's
// tool set. Output is deterministic for fixed inputs because the guidance
// prompt is derived from it and must be reproducible.
package catalog

import (
	"fmt"

	"neurodeck/internal/logging"
	"neurodeck/internal/readback"
	"neurodeck/internal/render"
	"neurodeck/internal/tools"
	"neurodeck/internal/tools/core"
	"neurodeck/internal/tools/shell"
)

// Tier is the capability bucket controlling which generic tools are
// reachable outside onboarding gating.
type Tier string

const (
	TierNone         Tier = "none"
	TierStandard     Tier = "standard"
	TierExperimental Tier = "experimental"
)

// ParseTier validates a tier name from config or CLI input.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierNone, TierStandard, TierExperimental:
		return Tier(s), nil
	case "":
		return TierStandard, nil
	}
	return "", fmt.Errorf("unknown capability tier %q", s)
}

// Options selects the catalog variant.
type Options struct {
	// OnboardingRequired overrides the tier with the fixed restricted list.
	OnboardingRequired bool

	// TierTools optionally overrides the default per-tier tool name lists
	// (order-significant). Unknown names are dropped with a warning.
	TierTools map[Tier][]string
}

// Catalog is the resolved, ordered tool list for one dispatch call.
// Immutable after construction.
type Catalog struct {
	restricted bool
	tier       Tier
	entries    []*tools.Tool
	byName     map[string]*tools.Tool
}

// onboardingToolNames is the fixed restricted list. The order is part of
// the contract: it is exactly what the model sees during onboarding.
var onboardingToolNames = []string{
	render.ToolName,
	"get_onboarding_state",
	"set_workspace_root",
	"save_provider_key",
	"set_model_preferences",
	"memory_append",
	"complete_onboarding",
}

// DefaultTierTools returns the default ordered tool names for a tier.
// This is configuration, not inference: hosts may override via Options.
func DefaultTierTools(tier Tier) []string {
	none := []string{
		render.ToolName,
		readback.ToolName,
		"read_file",
		"list_files",
		"memory_search",
		"memory_get",
	}
	standard := append(append([]string{}, none...),
		"write_file",
		"edit_file",
		"glob",
		"grep",
		"run_command",
		"memory_append",
		"web_search",
	)
	experimental := append(append([]string{}, standard...),
		"delete_file",
		"http_request",
	)

	switch tier {
	case TierNone:
		return none
	case TierExperimental:
		return experimental
	default:
		return standard
	}
}

// builders maps every known tool name to its definition builder. Adding a
// tool means adding a builder here and naming it in a tier list.
var builders = map[string]func() *tools.Tool{
	render.ToolName:   render.ToolDefinition,
	readback.ToolName: readback.ToolDefinition,

	"read_file":   core.ReadFileTool,
	"write_file":  core.WriteFileTool,
	"edit_file":   core.EditFileTool,
	"delete_file": core.DeleteFileTool,
	"list_files":  core.ListFilesTool,
	"glob":        core.GlobTool,
	"grep":        core.GrepTool,

	"run_command": shell.RunCommandTool,

	"memory_search": memorySearchTool,
	"memory_get":    memoryGetTool,
	"memory_append": memoryAppendTool,
	"web_search":    webSearchTool,
	"http_request":  httpRequestTool,

	"get_onboarding_state":  getOnboardingStateTool,
	"set_workspace_root":    setWorkspaceRootTool,
	"save_provider_key":     saveProviderKeyTool,
	"set_model_preferences": setModelPreferencesTool,
	"complete_onboarding":   completeOnboardingTool,
}

// Build resolves the catalog for one dispatch call.
func Build(tier Tier, opts Options) *Catalog {
	if opts.OnboardingRequired {
		c := fromNames(onboardingToolNames)
		c.restricted = true
		logging.ToolsDebug("catalog: onboarding override active (%d tools)", len(c.entries))
		return c
	}

	names := DefaultTierTools(tier)
	if opts.TierTools != nil {
		if override, ok := opts.TierTools[tier]; ok {
			names = override
		}
	}

	c := fromNames(names)
	c.tier = tier
	logging.ToolsDebug("catalog: tier=%s (%d tools)", tier, len(c.entries))
	return c
}

func fromNames(names []string) *Catalog {
	c := &Catalog{byName: make(map[string]*tools.Tool, len(names))}
	for _, name := range names {
		builder, ok := builders[name]
		if !ok {
			logging.ToolsWarn("catalog: unknown tool name %q dropped", name)
			continue
		}
		tool := builder()
		c.entries = append(c.entries, tool)
		c.byName[tool.Name] = tool
	}
	return c
}

// Restricted reports whether the onboarding override is active.
func (c *Catalog) Restricted() bool {
	return c.restricted
}

// Tier returns the tier this catalog was built for ("" when restricted).
func (c *Catalog) Tier() Tier {
	return c.tier
}

// Has reports whether the named tool is reachable through this catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Get returns the catalog entry for name, or nil.
func (c *Catalog) Get(name string) *tools.Tool {
	return c.byName[name]
}

// Tools returns the ordered entries.
func (c *Catalog) Tools() []*tools.Tool {
	out := make([]*tools.Tool, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the ordered tool names.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, t := range c.entries {
		out[i] = t.Name
	}
	return out
}

// Definitions returns the ordered advertised (name, schema) pairs.
func (c *Catalog) Definitions() []tools.Definition {
	out := make([]tools.Definition, len(c.entries))
	for i, t := range c.entries {
		out[i] = t.Definition()
	}
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}
