package catalog

import (
	"neurodeck/internal/tools"
)

// Definition-only tools: the dispatcher delegates these to host-supplied
// handlers, so Execute stays nil.

func getOnboardingStateTool() *tools.Tool {
	return &tools.Tool{
		Name:        "get_onboarding_state",
		Description: "Read the current onboarding checkpoint state",
		Category:    tools.CategoryOnboarding,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func setWorkspaceRootTool() *tools.Tool {
	return &tools.Tool{
		Name:        "set_workspace_root",
		Description: "Set the workspace root directory for file tools",
		Category:    tools.CategoryOnboarding,
		Schema: tools.ToolSchema{
			Required: []string{"path"},
			Properties: map[string]tools.Property{
				"path": {
					Type:        "string",
					Description: "Absolute path to use as the workspace root",
				},
			},
		},
	}
}

func saveProviderKeyTool() *tools.Tool {
	return &tools.Tool{
		Name:        "save_provider_key",
		Description: "Save a model provider API key. This is the only correct place for credentials.",
		Category:    tools.CategoryOnboarding,
		Schema: tools.ToolSchema{
			Required: []string{"provider", "api_key"},
			Properties: map[string]tools.Property{
				"provider": {
					Type:        "string",
					Description: "Provider identifier (e.g. anthropic, openai)",
				},
				"api_key": {
					Type:        "string",
					Description: "The API key to store",
				},
			},
		},
	}
}

func setModelPreferencesTool() *tools.Tool {
	return &tools.Tool{
		Name:        "set_model_preferences",
		Description: "Set the preferred provider and model",
		Category:    tools.CategoryOnboarding,
		Schema: tools.ToolSchema{
			Required: []string{"provider"},
			Properties: map[string]tools.Property{
				"provider": {
					Type:        "string",
					Description: "Preferred provider identifier",
				},
				"model": {
					Type:        "string",
					Description: "Preferred model name",
				},
			},
		},
	}
}

func completeOnboardingTool() *tools.Tool {
	return &tools.Tool{
		Name:        "complete_onboarding",
		Description: "Mark onboarding as complete and unlock the full tool set",
		Category:    tools.CategoryOnboarding,
		Schema: tools.ToolSchema{
			Required:   []string{},
			Properties: map[string]tools.Property{},
		},
	}
}

func memoryAppendTool() *tools.Tool {
	return &tools.Tool{
		Name:        "memory_append",
		Description: "Append a note to durable memory",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"content"},
			Properties: map[string]tools.Property{
				"content": {
					Type:        "string",
					Description: "The note to remember",
				},
				"tags": {
					Type:        "array",
					Description: "Optional tags for retrieval",
					Items:       &tools.PropertyItems{Type: "string"},
				},
			},
		},
	}
}

func memorySearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "memory_search",
		Description: "Search durable memory",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "Search query",
				},
				"limit": {
					Type:        "integer",
					Description: "Maximum results (default: 10)",
					Default:     10,
				},
			},
		},
	}
}

func memoryGetTool() *tools.Tool {
	return &tools.Tool{
		Name:        "memory_get",
		Description: "Fetch a memory entry by id",
		Category:    tools.CategoryMemory,
		Schema: tools.ToolSchema{
			Required: []string{"id"},
			Properties: map[string]tools.Property{
				"id": {
					Type:        "string",
					Description: "Memory entry id",
				},
			},
		},
	}
}

func webSearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "web_search",
		Description: "Search the web",
		Category:    tools.CategoryWeb,
		Schema: tools.ToolSchema{
			Required: []string{"query"},
			Properties: map[string]tools.Property{
				"query": {
					Type:        "string",
					Description: "Search query",
				},
			},
		},
	}
}

func httpRequestTool() *tools.Tool {
	return &tools.Tool{
		Name:        "http_request",
		Description: "Perform an HTTP request",
		Category:    tools.CategoryWeb,
		Schema: tools.ToolSchema{
			Required: []string{"url"},
			Properties: map[string]tools.Property{
				"url": {
					Type:        "string",
					Description: "Request URL",
				},
				"method": {
					Type:        "string",
					Description: "HTTP method (default: GET)",
					Default:     "GET",
				},
				"body": {
					Type:        "string",
					Description: "Request body",
				},
			},
		},
	}
}

// DelegatedToolNames lists the catalog names the dispatcher routes to
// host-supplied handlers rather than executing itself.
func DelegatedToolNames() []string {
	return []string{
		"get_onboarding_state",
		"set_workspace_root",
		"save_provider_key",
		"set_model_preferences",
		"complete_onboarding",
		"memory_append",
		"memory_search",
		"memory_get",
		"web_search",
		"http_request",
	}
}
