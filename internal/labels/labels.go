// Package labels loads the category names served by the recognizer.
package labels

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads a newline-delimited label file. The content is trimmed as a
// whole before splitting, so trailing newlines do not produce empty labels.
// An empty file yields an empty label set.
func Load(path string) ([]string, error) {
	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read labels %q: %w", expanded, err)
	}

	return Parse(string(data)), nil
}

// Parse splits label file content into labels in file order.
func Parse(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return []string{}
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return lines
}

// ExpandHome replaces a leading "~" or "~/" with the current user's home
// directory. Other paths are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %q: %w", path, err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
