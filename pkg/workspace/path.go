// Package workspace manages the on-disk file set for each session. Every
// session owns a directory under a shared root; generated files are written,
// merged, and read back through a Store handle that keeps reads and writes
// atomic with respect to each other.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateSessionID rejects identifiers that could escape the workspace root
// when joined as a directory name.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("invalid session id: %s", id)
	}
	return nil
}

// ValidateRelPath checks that a file path from a generated file set is a
// clean, workspace-relative path. Absolute paths and traversal outside the
// session directory are rejected.
func ValidateRelPath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	if strings.Contains(path, "\\") {
		return fmt.Errorf("file path must use forward slashes: %s", path)
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("file path must be relative: %s", path)
	}
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("file path escapes workspace: %s", path)
	}
	return nil
}
