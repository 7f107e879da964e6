// Package pathutil confines files written on behalf of remote callers to
// known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowedDirs is returned when a path resolves outside every
// allowed directory.
var ErrOutsideAllowedDirs = errors.New("path is outside allowed directories")

// RedactPath shortens a path to .../<parent>/<basename> so error messages
// and tool output do not leak the home directory.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// DefaultExportDir returns ~/.dksim/exports.
func DefaultExportDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".dksim", "exports"), nil
}

// ResolveExportPath turns a caller-supplied file name into an absolute path
// inside one of allowedDirs. Relative names are placed in allowedDirs[0].
// Symlinks in existing ancestors are resolved before the check, so a link
// inside an allowed directory cannot point elsewhere.
func ResolveExportPath(name string, allowedDirs []string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("export path is empty")
	}
	if strings.ContainsRune(name, '\x00') {
		return "", fmt.Errorf("export path contains null byte")
	}
	if len(allowedDirs) == 0 {
		return "", fmt.Errorf("no export directories configured")
	}

	candidate := name
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(allowedDirs[0], candidate)
	}
	resolved, err := resolve(candidate)
	if err != nil {
		return "", err
	}

	for _, dir := range allowedDirs {
		base, err := resolve(dir)
		if err != nil {
			continue
		}
		if within(resolved, base) && resolved != base {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideAllowedDirs, RedactPath(resolved))
}

// resolve returns the absolute, symlink-free form of path. Components that
// do not exist yet are appended unchanged to the deepest existing ancestor.
func resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", RedactPath(path), err)
	}

	var missing []string
	for dir := abs; ; {
		real, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("resolve %s: no existing ancestor", RedactPath(abs))
		}
		missing = append(missing, filepath.Base(dir))
		dir = parent
	}
}

// within reports whether path is base or below it.
func within(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
