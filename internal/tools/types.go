// Package tools provides the tool definition substrate for the neurodeck
// dispatch kernel: the definition/schema types the catalog advertises to the
// model and the registry that executes generic tools.
//
// Architecture:
//
//	Catalog (tier or onboarding override) → Dispatcher → Registry.Execute()
package tools

import (
	"context"
)

// Category classifies tools for catalog assembly and logging.
type Category string

const (
	// CategoryScreen covers the render output protocol (emit_screen, read_screen).
	CategoryScreen Category = "/screen"

	// CategoryFile covers sandboxed file operations.
	CategoryFile Category = "/file"

	// CategorySearch covers glob/grep style lookups inside the workspace.
	CategorySearch Category = "/search"

	// CategoryShell covers command execution inside the workspace.
	CategoryShell Category = "/shell"

	// CategoryMemory covers durable-memory actions delegated to the host.
	CategoryMemory Category = "/memory"

	// CategoryWeb covers outbound research actions delegated to the host.
	CategoryWeb Category = "/web"

	// CategoryOnboarding covers the onboarding-gated action set.
	CategoryOnboarding Category = "/onboarding"

	// CategoryGeneral is for tools usable in any mode.
	CategoryGeneral Category = "/general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
// This enables LLM tool calling with proper validation.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines a tool the model can call. A Tool with a nil Execute is a
// definition only: the dispatcher handles it itself (screen protocol) or
// delegates it to a host-supplied handler (onboarding, memory, web).
type Tool struct {
	// Name is the unique identifier for the tool.
	Name string

	// Description explains what the tool does.
	// Used for LLM tool calling and the guidance prompt.
	Description string

	// Category classifies the tool.
	Category Category

	// Execute runs the tool with the given arguments.
	// Nil for dispatcher-handled and delegated tools.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority is used when ordering within a category (default 50).
	Priority int
}

// Validate checks if the tool definition is valid for registration.
// Registered tools must be executable; definition-only tools never enter
// the registry.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Definition returns the advertised shape of the tool: name plus schema.
// The result is a copy; catalog output is immutable after construction.
func (t *Tool) Definition() Definition {
	return Definition{
		Name:        t.Name,
		Description: t.Description,
		Schema:      t.Schema,
	}
}

// Definition is the immutable (name, schema) pair advertised to the model.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Schema      ToolSchema `json:"schema"`
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
