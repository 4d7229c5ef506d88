package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is wrapped by every rejection below
var ErrUnsafePath = errors.New("unsafe path")

func rejectf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrUnsafePath}, args...)...)
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// ValidateFilePath rejects empty paths, NUL bytes and any ".." element. Both
// slash styles count as separators.
func ValidateFilePath(path string) error {
	switch {
	case path == "":
		return rejectf("path cannot be empty")
	case strings.IndexByte(path, 0) >= 0:
		return rejectf("path contains NUL byte")
	}
	for _, element := range strings.FieldsFunc(path, isSeparator) {
		if element == ".." {
			return rejectf("path contains directory traversal: %s", path)
		}
	}
	return nil
}

// ValidateFilename checks that name is a single path element and returns its
// absolute location inside root.
func ValidateFilename(name, root string) (string, error) {
	switch {
	case name == "":
		return "", rejectf("filename cannot be empty")
	case strings.IndexByte(name, 0) >= 0:
		return "", rejectf("filename contains NUL byte")
	case strings.ContainsFunc(name, isSeparator):
		return "", rejectf("filename contains path separator: %q", name)
	case name == "." || strings.Contains(name, ".."):
		return "", rejectf("filename contains directory traversal: %q", name)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve media root %s: %w", root, err)
	}

	full := filepath.Join(absRoot, name)
	if rel, err := filepath.Rel(absRoot, full); err != nil || rel != name {
		return "", rejectf("filename escapes root: %q", name)
	}
	return full, nil
}
