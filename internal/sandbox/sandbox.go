// Package sandbox validates filesystem paths against the configured workspace
// roots before any file-touching tool call is allowed to reach disk.
//
// Resolution is pure and synchronous: no file is read or written here, and a
// denial is terminal for the call. Relative paths resolve against the default
// root; symlinks and ".." segments cannot escape the allowed root set.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"neurodeck/internal/logging"
)

// ErrOutsideRoots is returned when a resolved path escapes every allowed root.
var ErrOutsideRoots = errors.New("path is outside the allowed workspace roots")

// Policy describes the root set a session's file tools may touch.
type Policy struct {
	// DefaultRoot is the base for relative paths. Must be absolute.
	DefaultRoot string

	// AllowedRoots are the directories file tools may touch. Must be
	// absolute. DefaultRoot is always treated as allowed.
	AllowedRoots []string
}

// NewPolicy builds a policy from a default root plus extra allowed roots.
// All roots are cleaned to absolute form.
func NewPolicy(defaultRoot string, extraRoots ...string) (*Policy, error) {
	if defaultRoot == "" {
		return nil, fmt.Errorf("default root required")
	}
	abs, err := filepath.Abs(defaultRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid default root: %w", err)
	}

	p := &Policy{DefaultRoot: filepath.Clean(abs)}
	p.AllowedRoots = append(p.AllowedRoots, p.DefaultRoot)
	for _, r := range extraRoots {
		ra, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed root %q: %w", r, err)
		}
		p.AllowedRoots = append(p.AllowedRoots, filepath.Clean(ra))
	}
	return p, nil
}

// Resolve canonicalizes requested and verifies it falls under an allowed
// root. Returns the absolute path to use for the actual file operation.
//
// The target itself may not exist yet (writes create files), so symlinks are
// evaluated on the deepest existing ancestor and the remainder re-joined
// before the containment check.
func (p *Policy) Resolve(requested string) (string, error) {
	if p == nil || p.DefaultRoot == "" {
		return "", fmt.Errorf("sandbox policy not configured")
	}
	if requested == "" {
		return "", fmt.Errorf("path required")
	}

	abs := requested
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.DefaultRoot, abs)
	}
	abs = filepath.Clean(abs)

	canonical, err := canonicalize(abs)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize %q: %w", requested, err)
	}

	for _, root := range p.AllowedRoots {
		canonicalRoot, err := canonicalize(root)
		if err != nil {
			continue
		}
		if contains(canonicalRoot, canonical) {
			logging.SandboxDebug("resolved %s -> %s (root=%s)", requested, abs, root)
			return abs, nil
		}
	}

	logging.Sandbox("denied %s: resolved to %s", requested, canonical)
	return "", fmt.Errorf("%w: %s", ErrOutsideRoots, requested)
}

// Contains reports whether requested resolves inside the allowed roots.
func (p *Policy) Contains(requested string) bool {
	_, err := p.Resolve(requested)
	return err == nil
}

// canonicalize resolves symlinks for the deepest existing ancestor of path
// and re-joins the non-existing remainder.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up until an existing ancestor is found.
	suffix := ""
	dir := path
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return path, nil // hit the filesystem root without finding anything
		}
		suffix = filepath.Join(filepath.Base(dir), suffix)
		dir = parent

		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// contains reports whether path equals root or is a descendant of it.
func contains(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
