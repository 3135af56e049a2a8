package docstore

import (
	"fmt"
	"strings"
)

const forbiddenKeyChars = ".#$[]"

// CleanPath trims surrounding whitespace and slashes and validates every
// segment. Segments may not be empty or contain any of . # $ [ ].
func CleanPath(path string) (string, error) {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(p, "/") {
		if err := validateKey(seg); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
		}
	}
	return p, nil
}

// Join builds a path from segments. It does not validate.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// Split returns the parent path and the last segment of a cleaned path. The
// parent of a top-level path is "".
func Split(path string) (parent, key string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// ValidKey reports whether s can be used as one path segment.
func ValidKey(s string) bool {
	return !strings.Contains(s, "/") && validateKey(s) == nil
}

func validateKey(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("empty segment")
	}
	if i := strings.IndexAny(s, forbiddenKeyChars); i >= 0 {
		return fmt.Errorf("segment %q contains %q", s, s[i])
	}
	return nil
}

func validateFields(fields Document) error {
	for k := range fields {
		if k == "" || strings.ContainsAny(k, forbiddenKeyChars+"/") {
			return fmt.Errorf("%w: field name %q", ErrInvalidPath, k)
		}
	}
	return nil
}
