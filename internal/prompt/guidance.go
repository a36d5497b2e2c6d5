// Package prompt renders the tool catalog and read-back policy into the
// instructional text shown to the model.
//
// BuildGuidancePrompt is a pure function of the catalog: same catalog, same
// string. The read-back wording is a policy contract, not prose style. It
// must present read_screen as optional and must never instruct the model to
// read back every turn.
package prompt

import (
	"fmt"
	"strings"

	"neurodeck/internal/catalog"
	"neurodeck/internal/readback"
	"neurodeck/internal/render"
)

// BuildGuidancePrompt renders the guidance text for one catalog.
func BuildGuidancePrompt(c *catalog.Catalog) string {
	var b strings.Builder

	if c.Restricted() {
		b.WriteString("You are completing first-run onboarding. Only the tools listed below are available until onboarding is complete.\n\n")
	} else {
		b.WriteString("You drive the screen environment through the tools listed below.\n\n")
	}

	b.WriteString("Available tools:\n")
	for _, tool := range c.Tools() {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}

	if c.Has(render.ToolName) {
		b.WriteString("\n")
		b.WriteString("emit_screen is the canonical output channel: everything the user sees is the html of your most recent emit_screen call. Each accepted call replaces the whole screen and advances the revision.\n")
	}

	if c.Has(readback.ToolName) {
		b.WriteString("\n")
		b.WriteString("read_screen is optional. Most turns you already know what you rendered and should not read it back. ")
		b.WriteString("When you do need it, try the lightest mode first: meta, then outline, then snippet. ")
		b.WriteString("You get one read per turn; a second requires recovery=true and a genuine reason; there is no third.\n")
	}

	return b.String()
}
