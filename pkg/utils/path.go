package utils

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// SecureJoin safely joins path elements and ensures the result stays within the base directory.
// Unlike filepath.Join, this function validates that the result doesn't escape the base through
// directory traversal.
//
// Example usage:
//
//	safePath, err := SecureJoin("./outputs", filename)
//	if err != nil {
//		return fmt.Errorf("invalid output name: %w", err)
//	}
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)

	// Join all elements
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)

	// Validate the result is within base
	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) &&
		fullPath != cleanBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return fullPath, nil
}

// URLPathParts returns the non-empty path segments of rawURL.
//
//	URLPathParts("https://www.bbcgoodfood.com/recipes/collection/easy-dinner/")
//	// => ["recipes", "collection", "easy-dinner"]
func URLPathParts(rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	var parts []string
	for _, part := range strings.Split(u.Path, "/") {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// LastPathSegment returns the final non-empty path segment of rawURL, or "" when there is none
func LastPathSegment(rawURL string) string {
	parts, err := URLPathParts(rawURL)
	if err != nil || len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// SanitizeFilename replaces path separators and other characters that are unsafe in file
// and object names
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "\x00", "")
	name = strings.TrimSpace(replacer.Replace(name))
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
