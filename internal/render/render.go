// Package render owns the versioned "current screen" state: the output
// channel between the model and the host UI. Each accepted emit_screen call
// advances the revision by exactly one and replaces the latest HTML; nothing
// else in the kernel may mutate this state.
package render

import (
	"errors"
	"fmt"
	"strings"

	"neurodeck/internal/logging"
	"neurodeck/internal/tools"
)

// ToolName is the catalog name of the screen output tool.
const ToolName = "emit_screen"

// EventType identifies the stream event broadcast to observers.
const EventType = "render_output"

// ErrEmptyHTML is returned when the payload is empty or whitespace-only.
var ErrEmptyHTML = errors.New("emit_screen requires a non-empty html payload")

// State is the render output state for one session. Revision starts at 0
// and reaches 1 on the first accepted call; it never decreases.
type State struct {
	Revision    int
	LatestHTML  string
	LastIsFinal bool
}

// NewState creates the initial state for a session.
func NewState() *State {
	return &State{}
}

// Args is a validated emit_screen payload.
type Args struct {
	HTML string

	// IsFinal is nil when the caller omitted the flag; Apply then keeps
	// the previous value.
	IsFinal *bool
}

// ValidateArgs checks an emit_screen argument map. An empty or
// whitespace-only html payload is always denied.
func ValidateArgs(args map[string]any) (*Args, error) {
	html, _ := args["html"].(string)
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyHTML
	}

	out := &Args{HTML: html}
	if v, ok := args["is_final"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("is_final must be a boolean")
		}
		out.IsFinal = &b
	}
	return out, nil
}

// StreamEvent is the unit broadcast to observers after an accepted call.
// Persistence of rendered output is the concern of the host, not the kernel.
type StreamEvent struct {
	Type       string `json:"type"`
	Revision   int    `json:"revision"`
	HTML       string `json:"html"`
	IsFinal    bool   `json:"is_final"`
	ToolCallID string `json:"tool_call_id"`
}

// Apply advances the state with a validated payload and returns the event
// to broadcast. Calls must be strictly sequential per session.
func (s *State) Apply(a *Args, toolCallID string) StreamEvent {
	s.Revision++
	s.LatestHTML = a.HTML
	if a.IsFinal != nil {
		s.LastIsFinal = *a.IsFinal
	}

	logging.Render("emit_screen applied: revision=%d, bytes=%d, final=%v", s.Revision, len(a.HTML), s.LastIsFinal)

	return StreamEvent{
		Type:       EventType,
		Revision:   s.Revision,
		HTML:       s.LatestHTML,
		IsFinal:    s.LastIsFinal,
		ToolCallID: toolCallID,
	}
}

// ToolDefinition returns the emit_screen catalog entry. Execute is nil:
// the dispatcher applies the protocol itself.
func ToolDefinition() *tools.Tool {
	return &tools.Tool{
		Name:        ToolName,
		Description: "Render the current screen. The html payload replaces the entire screen and bumps the revision.",
		Category:    tools.CategoryScreen,
		Priority:    95,
		Schema: tools.ToolSchema{
			Required: []string{"html"},
			Properties: map[string]tools.Property{
				"html": {
					Type:        "string",
					Description: "Full HTML document or fragment for the screen. Must be non-empty.",
				},
				"is_final": {
					Type:        "boolean",
					Description: "Marks this screen as the final one for the turn (default: keep previous)",
				},
			},
		},
	}
}
