// Package security guards file and object names built from operator input.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// canonical resolves p to an absolute path with symlinks evaluated. When p
// does not exist yet, the nearest existing ancestor is resolved instead so a
// symlinked parent cannot smuggle the path elsewhere.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	rest := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
	}
}

// ValidatePathWithinDirectory rejects filePath when it resolves outside dir,
// including through .. components or symlinks.
func ValidatePathWithinDirectory(filePath, dir string) error {
	path, err := canonical(filePath)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	root, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory symlinks: %w", err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}

// ValidateExportPath accepts export destinations under the temp directory
// or the working directory.
func ValidateExportPath(filePath string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	for _, dir := range []string{os.TempDir(), cwd} {
		if ValidatePathWithinDirectory(filePath, dir) == nil {
			return nil
		}
	}
	return fmt.Errorf("export path %s must be under %s or %s", filePath, os.TempDir(), cwd)
}

// SanitizeFilename maps s to [A-Za-z0-9._-], collapsing runs of other
// characters into one underscore. The result is at most 128 bytes and never
// empty.
func SanitizeFilename(s string) string {
	const maxLen = 128
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	if out := strings.Trim(b.String(), "._"); out != "" {
		return out
	}
	return "unknown"
}
