package readback

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// interactiveTags are the element names whose id attribute counts as an
// interaction marker even without an explicit data-action-id.
var interactiveTags = map[string]bool{
	"a":        true,
	"button":   true,
	"form":     true,
	"input":    true,
	"select":   true,
	"textarea": true,
}

// outlineTags are the elements worth surfacing in the structural summary.
var outlineTags = map[string]bool{
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"main": true, "nav": true, "header": true, "footer": true,
	"section": true, "article": true, "form": true, "table": true,
	"ul": true, "ol": true,
}

const outlineLineCap = 40

// buildPayload renders the mode-specific textual payload for the model.
func buildPayload(a *Args, revision int, htmlContent string) (string, error) {
	switch a.Mode {
	case ModeMeta:
		return buildMeta(revision, htmlContent), nil
	case ModeOutline:
		return buildOutline(revision, htmlContent), nil
	case ModeSnippet:
		return buildSnippet(revision, htmlContent, a.MaxChars), nil
	}
	return "", fmt.Errorf("invalid mode %q", a.Mode)
}

func buildMeta(revision int, htmlContent string) string {
	ids := interactionIDs(htmlContent, -1)
	sum := sha256.Sum256([]byte(htmlContent))
	return fmt.Sprintf("revision=%d\nhash=sha256:%x\ninteraction_ids=%d", revision, sum[:8], len(ids))
}

func buildOutline(revision int, htmlContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "revision=%d\n", revision)

	lines := structureLines(htmlContent)
	if len(lines) > 0 {
		b.WriteString("structure:\n")
		for _, l := range lines {
			b.WriteString("  ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	ids := interactionIDs(htmlContent, OutlineCap)
	b.WriteString(fmt.Sprintf("interactive (%d shown):\n", len(ids)))
	for _, id := range ids {
		b.WriteString("  ")
		b.WriteString(id)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildSnippet truncates by characters, not bytes, so a multibyte rune is
// never split into invalid UTF-8.
func buildSnippet(revision int, htmlContent string, maxChars int) string {
	total := utf8.RuneCountInString(htmlContent)
	snippet := htmlContent
	truncated := total > maxChars
	if truncated {
		runes := []rune(htmlContent)
		snippet = string(runes[:maxChars])
	}
	header := fmt.Sprintf("revision=%d chars=%d/%d truncated=%v\n",
		revision, utf8.RuneCountInString(snippet), total, truncated)
	return header + snippet
}

// interactionIDs returns the interactive element identifiers in document
// order. A marker is a data-action-id value, or the id of an interactive
// tag. limit < 0 means unbounded (used for counting).
func interactionIDs(htmlContent string, limit int) []string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var ids []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if limit >= 0 && len(ids) >= limit {
			return
		}
		if n.Type == html.ElementNode {
			if id := interactionID(n); id != "" {
				ids = append(ids, id)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

// interactionID extracts the marker for a single element, or "".
func interactionID(n *html.Node) string {
	var id string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "data-action-id":
			return attr.Val
		case "id":
			id = attr.Val
		}
	}
	if id != "" && interactiveTags[n.Data] {
		return id
	}
	return ""
}

// structureLines renders an indented outline of the structural elements,
// capped at outlineLineCap lines.
func structureLines(htmlContent string) []string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var lines []string
	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if len(lines) >= outlineLineCap {
			return
		}
		nextDepth := depth
		if n.Type == html.ElementNode && outlineTags[n.Data] {
			lines = append(lines, strings.Repeat("  ", depth)+describeNode(n))
			nextDepth = depth + 1
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, nextDepth)
		}
	}
	walk(doc, 0)
	return lines
}

// describeNode formats one outline entry: the tag, its id when present, and
// a short text preview for headings.
func describeNode(n *html.Node) string {
	out := "<" + n.Data
	for _, attr := range n.Attr {
		if attr.Key == "id" {
			out += fmt.Sprintf(" id=%q", attr.Val)
		}
	}
	out += ">"

	if strings.HasPrefix(n.Data, "h") && len(n.Data) == 2 {
		text := strings.TrimSpace(nodeText(n))
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		if text != "" {
			out += " " + text
		}
	}
	return out
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
