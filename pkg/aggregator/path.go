package aggregator

import (
	"fmt"
	"path"
	"strings"
)

// normalizePath collapses backslashes to forward slashes, canonicalizes
// "." and ".." segments relative to the workspace root, and rejects any
// result whose canonicalized form still starts with "..": that can only
// happen when the input has more ".." segments than real directories to
// climb through, i.e. it escapes the workspace.
func normalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("aggregator: path %q escapes the workspace root", p)
	}
	return cleaned, nil
}
