package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	claudeConfigDirEnv = "CLAUDE_CONFIG_DIR"
	projectsDirName    = "projects"
)

// ClaudePaths resolves the log roots to scan. CLAUDE_CONFIG_DIR takes a comma
// separated list; when it is unset or names no valid root the two default
// locations are used. A root is valid only if it contains a projects directory.
func ClaudePaths() []string {
	if env := strings.TrimSpace(os.Getenv(claudeConfigDirEnv)); env != "" {
		if paths := validRoots(strings.Split(env, ",")); len(paths) > 0 {
			return paths
		}
	}
	return validRoots(defaultRoots())
}

func defaultRoots() []string {
	var roots []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		roots = append(roots, filepath.Join(xdg, "claude"))
	} else if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".config", "claude"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		roots = append(roots, filepath.Join(home, ".claude"))
	}
	return roots
}

func validRoots(candidates []string) []string {
	seen := make(map[string]bool, len(candidates))
	var roots []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		root := filepath.Clean(expandHome(c))
		if seen[root] {
			continue
		}
		info, err := os.Stat(filepath.Join(root, projectsDirName))
		if err != nil || !info.IsDir() {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
