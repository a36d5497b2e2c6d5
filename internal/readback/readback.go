// Package readback implements the budget-limited read_screen channel: the
// model may introspect the current screen once per turn for free, once more
// with an explicit recovery flag, and never a third time.
//
// Running a read-back never mutates the render state; it is strictly
// read-only with respect to the output protocol.
package readback

import (
	"errors"
	"fmt"

	"neurodeck/internal/logging"
	"neurodeck/internal/render"
	"neurodeck/internal/tools"
)

// ToolName is the catalog name of the screen read-back tool.
const ToolName = "read_screen"

// Mode selects the payload shape.
type Mode string

const (
	// ModeMeta returns revision, a content fingerprint and the count of
	// interactive element markers. No raw HTML.
	ModeMeta Mode = "meta"

	// ModeOutline returns a structural summary plus the interactive
	// element identifiers, capped at OutlineCap entries.
	ModeOutline Mode = "outline"

	// ModeSnippet returns the first max_chars characters of the HTML.
	ModeSnippet Mode = "snippet"
)

const (
	// DefaultMaxChars is the snippet size when max_chars is omitted.
	DefaultMaxChars = 2000

	// MaxCharsCeiling clamps any requested snippet size.
	MaxCharsCeiling = 20000

	// OutlineCap bounds the interactive-id list in outline payloads.
	OutlineCap = 30
)

// Budget denial errors. The message text is a stable contract the host and
// tests grep for.
var (
	ErrNoScreen         = errors.New("read_screen called before first emit_screen; emit a screen first")
	ErrRecoveryRequired = errors.New("read_screen already used this turn; pass recovery=true if you genuinely need a second read")
	ErrBudgetExceeded   = errors.New("read_screen budget exceeded for this turn")
)

// UsageState is the per-turn read counter. Created fresh at turn start and
// discarded at turn end; it never leaks across turns or sessions.
type UsageState struct {
	ReadCount int
}

// NewUsageState creates a fresh per-turn state.
func NewUsageState() *UsageState {
	return &UsageState{}
}

// Args is a validated read_screen payload.
type Args struct {
	Mode     Mode
	Recovery bool
	MaxChars int
}

// Limits are the host-configurable snippet size bounds.
type Limits struct {
	DefaultMaxChars int
	MaxCharsCeiling int
}

// DefaultLimits returns the built-in bounds.
func DefaultLimits() Limits {
	return Limits{DefaultMaxChars: DefaultMaxChars, MaxCharsCeiling: MaxCharsCeiling}
}

// ValidateArgs checks a read_screen argument map against the built-in
// limits. mode defaults to meta, recovery to false, max_chars to the
// default (clamped to the ceiling).
func ValidateArgs(args map[string]any) (*Args, error) {
	return ValidateArgsLimited(args, DefaultLimits())
}

// ValidateArgsLimited is ValidateArgs with host-configured limits. Zero
// limit fields fall back to the built-ins.
func ValidateArgsLimited(args map[string]any, lim Limits) (*Args, error) {
	if lim.DefaultMaxChars <= 0 {
		lim.DefaultMaxChars = DefaultMaxChars
	}
	if lim.MaxCharsCeiling <= 0 {
		lim.MaxCharsCeiling = MaxCharsCeiling
	}

	out := &Args{Mode: ModeMeta, MaxChars: lim.DefaultMaxChars}

	if v, ok := args["mode"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("invalid mode: must be a string")
		}
		switch Mode(s) {
		case ModeMeta, ModeOutline, ModeSnippet:
			out.Mode = Mode(s)
		default:
			return nil, fmt.Errorf("invalid mode %q: must be one of meta, outline, snippet", s)
		}
	}

	if v, ok := args["recovery"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("recovery must be a boolean")
		}
		out.Recovery = b
	}

	if v, ok := args["max_chars"]; ok {
		var n int
		switch t := v.(type) {
		case int:
			n = t
		case float64:
			n = int(t)
		default:
			return nil, fmt.Errorf("max_chars must be a number")
		}
		if n > 0 {
			out.MaxChars = n
		}
	}
	if out.MaxChars > lim.MaxCharsCeiling {
		out.MaxChars = lim.MaxCharsCeiling
	}

	return out, nil
}

// Run enforces the per-turn budget and builds the payload for the current
// screen. On acceptance it increments usage.ReadCount; renderState is never
// written.
func Run(a *Args, renderState *render.State, usage *UsageState) (string, error) {
	if renderState == nil || renderState.Revision == 0 {
		return "", ErrNoScreen
	}

	switch {
	case usage.ReadCount == 0:
		// First read of the turn is free.
	case usage.ReadCount == 1:
		if !a.Recovery {
			return "", ErrRecoveryRequired
		}
	default:
		return "", ErrBudgetExceeded
	}

	payload, err := buildPayload(a, renderState.Revision, renderState.LatestHTML)
	if err != nil {
		return "", err
	}

	usage.ReadCount++
	logging.Readback("read_screen accepted: mode=%s, readCount=%d, revision=%d", a.Mode, usage.ReadCount, renderState.Revision)
	return payload, nil
}

// ToolDefinition returns the read_screen catalog entry. Execute is nil:
// the dispatcher applies the budget itself.
func ToolDefinition() *tools.Tool {
	return &tools.Tool{
		Name:        ToolName,
		Description: "Read back the current screen. Budget: one free read per turn, one more with recovery=true.",
		Category:    tools.CategoryScreen,
		Priority:    90,
		Schema: tools.ToolSchema{
			Required: []string{},
			Properties: map[string]tools.Property{
				"mode": {
					Type:        "string",
					Description: "Payload shape: meta (fingerprint only), outline (structure + interactive ids), snippet (raw prefix)",
					Default:     "meta",
					Enum:        []any{"meta", "outline", "snippet"},
				},
				"recovery": {
					Type:        "boolean",
					Description: "Required true for a second read within one turn",
					Default:     false,
				},
				"max_chars": {
					Type:        "integer",
					Description: "Snippet length cap (default 2000, ceiling 20000)",
					Default:     DefaultMaxChars,
				},
			},
		},
	}
}
