// Package dispatch is the tool-call orchestrator: given one model-issued
// call and the current policy context, it validates, authorizes, and
// executes or delegates, composing the catalog, sandbox, secret scanner,
// render protocol and read-back budget.
//
// Every decision step short-circuits to a denial result carrying a stable,
// greppable marker phrase. Nothing here panics or retries: a denial is
// terminal for the call and retry policy belongs to the calling host.
package dispatch

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"neurodeck/internal/catalog"
	"neurodeck/internal/logging"
	"neurodeck/internal/readback"
	"neurodeck/internal/render"
	"neurodeck/internal/sandbox"
	"neurodeck/internal/secrets"
	"neurodeck/internal/tools"
	"neurodeck/internal/tools/core"
	"neurodeck/internal/tools/shell"
)

// Request is one model-issued tool call. Immutable; the dispatcher copies
// the argument map before rewriting paths.
type Request struct {
	// ID is the host's tool call id. Minted when empty.
	ID string

	// Name is the tool to invoke.
	Name string

	// Arguments is the decoded argument map.
	Arguments map[string]any
}

// Result is the outcome returned to the host for every call. Denials are
// results, never faults.
type Result struct {
	CallID  string
	IsError bool
	Text    string

	// Event is set only for an accepted emit_screen call.
	Event *render.StreamEvent
}

// Handler is one delegated action behind the kernel boundary (credential
// save, onboarding transitions, memory, web). Implementations may do their
// own I/O; the dispatcher awaits them to completion.
type Handler interface {
	Handle(ctx context.Context, args map[string]any) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, args map[string]any) (string, error) {
	return f(ctx, args)
}

// Context is the per-call policy context. The kernel treats it as read-only
// input and never persists it.
type Context struct {
	// Catalog is the active tool list for this call.
	Catalog *catalog.Catalog

	// Sandbox is the workspace root policy for file tools.
	Sandbox *sandbox.Policy

	// OnboardingMode marks that the restricted catalog is in force.
	OnboardingMode bool

	// Handlers maps delegated action names to host-supplied handlers.
	Handlers map[string]Handler

	// RenderState is the session's screen output state.
	RenderState *render.State

	// ReadUsage is the turn's read-back counter.
	ReadUsage *readback.UsageState

	// ReadLimits bounds read_screen snippet sizes. Zero fields fall back
	// to the built-in limits.
	ReadLimits readback.Limits

	// Observer, when set, receives the stream event of an accepted
	// emit_screen call.
	Observer func(render.StreamEvent)
}

// Dispatcher executes tool calls. Safe to share across sessions: all
// per-session state arrives through Context.
type Dispatcher struct {
	registry *tools.Registry
}

// New creates a dispatcher with the generic workspace tools registered.
func New() (*Dispatcher, error) {
	reg := tools.NewRegistry()
	if err := core.RegisterAll(reg); err != nil {
		return nil, fmt.Errorf("failed to register core tools: %w", err)
	}
	if err := shell.RegisterAll(reg); err != nil {
		return nil, fmt.Errorf("failed to register shell tools: %w", err)
	}
	return &Dispatcher{registry: reg}, nil
}

// delegated marks the catalog names routed to host handlers.
var delegated = func() map[string]bool {
	m := make(map[string]bool)
	for _, name := range catalog.DelegatedToolNames() {
		m[name] = true
	}
	return m
}()

// Execute runs one tool call through the decision sequence:
// catalog membership, delegation, screen protocol, generic file action.
func (d *Dispatcher) Execute(ctx context.Context, req Request, pc Context) Result {
	callID := req.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	logging.ToolsDebug("dispatch: call=%s name=%s onboarding=%v", callID, req.Name, pc.OnboardingMode)

	// 1. Catalog membership.
	if pc.Catalog == nil || !pc.Catalog.Has(req.Name) {
		if pc.OnboardingMode {
			return deny(callID, fmt.Sprintf("tool %q is blocked during required onboarding; complete onboarding to unlock it", req.Name))
		}
		return deny(callID, fmt.Sprintf("tool %q is not in the active catalog", req.Name))
	}

	// 2. Delegation to host handlers.
	if delegated[req.Name] {
		return d.delegate(ctx, callID, req, pc)
	}

	// 3. Screen protocol.
	switch req.Name {
	case render.ToolName:
		return d.emitScreen(callID, req, pc)
	case readback.ToolName:
		return d.readScreen(callID, req, pc)
	}

	// 4. Generic sandboxed action.
	return d.generic(ctx, callID, req, pc)
}

// delegate awaits the matching handler; a missing handler is a denial, a
// handler rejection is an error result carrying the reason verbatim.
func (d *Dispatcher) delegate(ctx context.Context, callID string, req Request, pc Context) Result {
	handler, ok := pc.Handlers[req.Name]
	if !ok || handler == nil {
		return deny(callID, fmt.Sprintf("no handler registered for %q", req.Name))
	}

	logging.OnboardingDebug("delegating %s (call=%s)", req.Name, callID)
	text, err := handler.Handle(ctx, req.Arguments)
	if err != nil {
		return Result{CallID: callID, IsError: true, Text: err.Error()}
	}
	return Result{CallID: callID, Text: text}
}

func (d *Dispatcher) emitScreen(callID string, req Request, pc Context) Result {
	args, err := render.ValidateArgs(req.Arguments)
	if err != nil {
		return deny(callID, err.Error())
	}

	event := pc.RenderState.Apply(args, callID)
	if pc.Observer != nil {
		pc.Observer(event)
	}
	return Result{
		CallID: callID,
		Text:   fmt.Sprintf("Screen rendered (revision %d)", event.Revision),
		Event:  &event,
	}
}

func (d *Dispatcher) readScreen(callID string, req Request, pc Context) Result {
	args, err := readback.ValidateArgsLimited(req.Arguments, pc.ReadLimits)
	if err != nil {
		return deny(callID, err.Error())
	}

	payload, err := readback.Run(args, pc.RenderState, pc.ReadUsage)
	if err != nil {
		return deny(callID, err.Error())
	}
	return Result{CallID: callID, Text: payload}
}

// generic resolves paths through the sandbox, scans write payloads for
// secrets, then executes the registered tool.
func (d *Dispatcher) generic(ctx context.Context, callID string, req Request, pc Context) Result {
	args, err := d.sandboxArgs(req.Name, req.Arguments, pc.Sandbox)
	if err != nil {
		return deny(callID, err.Error())
	}

	if payload := writePayload(req.Name, args); payload != "" {
		if secrets.LooksLikeSecret(payload) {
			logging.Tools("secret-leak denial: tool=%s call=%s", req.Name, callID)
			return deny(callID, fmt.Sprintf(
				"refusing %s: the content looks like a secret. Use save_provider_key to store credentials; they are never written through generic file tools", req.Name))
		}
	}

	result, err := d.registry.Execute(ctx, req.Name, args)
	if err != nil {
		return Result{CallID: callID, IsError: true, Text: err.Error()}
	}
	return Result{CallID: callID, Text: result.Result}
}

// pathArgKeys names the argument the sandbox must validate per tool.
var pathArgKeys = map[string]string{
	"read_file":   "path",
	"write_file":  "path",
	"edit_file":   "path",
	"delete_file": "path",
	"list_files":  "path",
	"grep":        "path",
	"glob":        "base_path",
	"run_command": "working_dir",
}

// sandboxArgs returns a copy of args with the tool's path argument resolved
// to an absolute path inside the allowed roots. Missing path arguments
// default to the sandbox root for directory-scoped tools.
func (d *Dispatcher) sandboxArgs(name string, args map[string]any, policy *sandbox.Policy) (map[string]any, error) {
	key, needsPath := pathArgKeys[name]
	if !needsPath {
		return args, nil
	}
	if policy == nil {
		return nil, fmt.Errorf("no workspace sandbox configured")
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	requested, _ := out[key].(string)
	if requested == "" {
		switch name {
		case "list_files", "glob", "run_command":
			requested = "."
		default:
			return nil, fmt.Errorf("%s requires %s", name, key)
		}
	}

	resolved, err := policy.Resolve(requested)
	if err != nil {
		return nil, err
	}
	out[key] = resolved

	// glob joins its pattern onto base_path inside the executor, so ".."
	// segments in the pattern are a second escape vector. Wildcards are
	// plain path segments to the resolver; only traversal can move the
	// cleaned join outside the roots.
	if name == "glob" {
		if pattern, _ := out["pattern"].(string); pattern != "" {
			if _, err := policy.Resolve(filepath.Join(resolved, pattern)); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// writePayload extracts the content that would reach disk or a shell for
// the secret scan. Empty string means nothing to scan.
func writePayload(name string, args map[string]any) string {
	switch name {
	case "write_file":
		s, _ := args["content"].(string)
		return s
	case "edit_file":
		s, _ := args["new_text"].(string)
		return s
	case "run_command":
		s, _ := args["command"].(string)
		return s
	}
	return ""
}

func deny(callID, text string) Result {
	return Result{CallID: callID, IsError: true, Text: text}
}
