package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func mustPolicy(t *testing.T, root string, extra ...string) *Policy {
	t.Helper()
	p, err := NewPolicy(root, extra...)
	if err != nil {
		t.Fatalf("NewPolicy failed: %v", err)
	}
	return p
}

func TestResolveRelativeAgainstDefaultRoot(t *testing.T) {
	root := t.TempDir()
	p := mustPolicy(t, root)

	got, err := p.Resolve("notes/todo.md")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := filepath.Join(root, "notes", "todo.md")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAbsoluteInsideRoot(t *testing.T) {
	root := t.TempDir()
	p := mustPolicy(t, root)

	target := filepath.Join(root, "a", "b.txt")
	got, err := p.Resolve(target)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != target {
		t.Errorf("got %q, want %q", got, target)
	}
}

func TestResolveDeniesEscapes(t *testing.T) {
	root := t.TempDir()
	p := mustPolicy(t, root)

	tests := []struct {
		name string
		path string
	}{
		{"dotdot traversal", "../outside.txt"},
		{"nested dotdot", "a/b/../../../outside.txt"},
		{"absolute outside", filepath.Join(os.TempDir(), "elsewhere.txt")},
		{"parent of root", filepath.Dir(root)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Resolve(tt.path)
			if !errors.Is(err, ErrOutsideRoots) {
				t.Errorf("Resolve(%q) = %v, want ErrOutsideRoots", tt.path, err)
			}
		})
	}
}

func TestResolveRootItselfAllowed(t *testing.T) {
	root := t.TempDir()
	p := mustPolicy(t, root)

	if _, err := p.Resolve(root); err != nil {
		t.Errorf("root itself should resolve: %v", err)
	}
}

func TestResolveExtraAllowedRoots(t *testing.T) {
	root := t.TempDir()
	extra := t.TempDir()
	p := mustPolicy(t, root, extra)

	if _, err := p.Resolve(filepath.Join(extra, "data.json")); err != nil {
		t.Errorf("path under extra root should resolve: %v", err)
	}
}

func TestResolveSymlinkEscapeDenied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink semantics differ on windows")
	}

	root := t.TempDir()
	outside := t.TempDir()
	p := mustPolicy(t, root)

	link := filepath.Join(root, "sneaky")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	_, err := p.Resolve(filepath.Join(link, "leak.txt"))
	if !errors.Is(err, ErrOutsideRoots) {
		t.Errorf("symlink escape should be denied, got %v", err)
	}
}

func TestResolveEmptyPath(t *testing.T) {
	p := mustPolicy(t, t.TempDir())
	if _, err := p.Resolve(""); err == nil {
		t.Error("empty path should error")
	}
}

func TestContains(t *testing.T) {
	root := t.TempDir()
	p := mustPolicy(t, root)

	if !p.Contains("inside.txt") {
		t.Error("relative path should be contained")
	}
	if p.Contains("../escape.txt") {
		t.Error("escape should not be contained")
	}
}
