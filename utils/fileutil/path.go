package fileutil

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands environment variables and a leading ~ to the
// user's home directory, then resolves the result to an absolute path.
// Recipe-rendered paths go through this before any filesystem access,
// so a relative path in a recipe always means "relative to the working
// directory the run started in", not to whatever a substep last chdir'd
// to.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	path = os.ExpandEnv(path)

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}

		if path == "~" {
			return homeDir, nil
		}

		if strings.HasPrefix(path, "~/") {
			return filepath.Join(homeDir, path[2:]), nil
		}

		// ~user syntax is not supported; fall through and treat it as
		// an ordinary relative path.
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}

// ExpandPaths expands a slice of paths using ExpandPath.
func ExpandPaths(paths []string) ([]string, error) {
	expanded := make([]string, len(paths))
	for i, p := range paths {
		exp, err := ExpandPath(p)
		if err != nil {
			return nil, err
		}
		expanded[i] = exp
	}
	return expanded, nil
}
