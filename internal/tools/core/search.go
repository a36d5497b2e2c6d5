package core

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"neurodeck/internal/logging"
	"neurodeck/internal/tools"
)

// GlobTool returns a tool for finding files matching a pattern.
func GlobTool() *tools.Tool {
	return &tools.Tool{
		Name:        "glob",
		Description: "Find files matching a glob pattern",
		Category:    tools.CategorySearch,
		Priority:    85,
		Execute:     executeGlob,
		Schema: tools.ToolSchema{
			Required: []string{"pattern"},
			Properties: map[string]tools.Property{
				"pattern": {
					Type:        "string",
					Description: "Glob pattern (e.g., '**/*.go', 'src/*.ts')",
				},
				"base_path": {
					Type:        "string",
					Description: "Base directory for search (default: workspace root)",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of results (default: 100)",
					Default:     100,
				},
			},
		},
	}
}

func executeGlob(ctx context.Context, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}

	basePath := "."
	if bp, ok := args["base_path"].(string); ok && bp != "" {
		basePath = bp
	}

	maxResults := 100
	if mr, ok := intArg(args, "max_results"); ok && mr > 0 {
		maxResults = mr
	}

	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	// The pattern joins onto the base; ".." segments must not leave it.
	joined := filepath.Join(absBase, pattern)
	if joined != absBase && !strings.HasPrefix(joined, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("pattern %q escapes the base path", pattern)
	}
	basePath = absBase

	logging.ToolsDebug("glob: pattern=%s, base=%s", pattern, basePath)

	var matches []string

	if strings.Contains(pattern, "**") {
		// Recursive match: walk and compare the suffix pattern per file.
		parts := strings.SplitN(pattern, "**", 2)
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")

		searchPath := basePath
		if prefix != "" {
			searchPath = filepath.Join(basePath, prefix)
		}

		err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if len(matches) >= maxResults {
				return filepath.SkipAll
			}
			if suffix == "" {
				matches = append(matches, path)
				return nil
			}
			ok, _ := filepath.Match(suffix, filepath.Base(path))
			if ok {
				matches = append(matches, path)
			}
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		found, err := filepath.Glob(filepath.Join(basePath, pattern))
		if err != nil {
			return "", fmt.Errorf("invalid glob pattern: %w", err)
		}
		matches = found
		if len(matches) > maxResults {
			matches = matches[:maxResults]
		}
	}

	logging.Tools("glob completed: %s (%d matches)", pattern, len(matches))
	if len(matches) == 0 {
		return "No files matched", nil
	}
	return strings.Join(matches, "\n"), nil
}

// GrepTool returns a tool for searching file contents with a regex.
func GrepTool() *tools.Tool {
	return &tools.Tool{
		Name:        "grep",
		Description: "Search file contents for a regular expression",
		Category:    tools.CategorySearch,
		Priority:    85,
		Execute:     executeGrep,
		Schema: tools.ToolSchema{
			Required: []string{"pattern", "path"},
			Properties: map[string]tools.Property{
				"pattern": {
					Type:        "string",
					Description: "Regular expression to search for",
				},
				"path": {
					Type:        "string",
					Description: "File or directory to search",
				},
				"max_results": {
					Type:        "integer",
					Description: "Maximum number of matching lines (default: 100)",
					Default:     100,
				},
			},
		},
	}
}

func executeGrep(ctx context.Context, args map[string]any) (string, error) {
	pattern, _ := args["pattern"].(string)
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}

	maxResults := 100
	if mr, ok := intArg(args, "max_results"); ok && mr > 0 {
		maxResults = mr
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	logging.ToolsDebug("grep: pattern=%s, path=%s", pattern, path)

	var results []string

	grepFile := func(file string) error {
		f, err := os.Open(file)
		if err != nil {
			return nil // unreadable files are skipped, not fatal
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			if len(results) >= maxResults {
				return nil
			}
			line := scanner.Text()
			if re.MatchString(line) {
				results = append(results, fmt.Sprintf("%s:%d: %s", file, lineNo, line))
			}
		}
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if fi.IsDir() {
				if strings.HasPrefix(fi.Name(), ".") && p != path {
					return filepath.SkipDir
				}
				return nil
			}
			if len(results) >= maxResults {
				return filepath.SkipAll
			}
			return grepFile(p)
		})
		if err != nil {
			return "", fmt.Errorf("failed to walk directory: %w", err)
		}
	} else {
		if err := grepFile(path); err != nil {
			return "", err
		}
	}

	logging.Tools("grep completed: %s (%d matches)", pattern, len(results))
	if len(results) == 0 {
		return "No matches found", nil
	}
	return strings.Join(results, "\n"), nil
}
