package reconcile

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var importLineRe = regexp.MustCompile(`"([^"]+)"`)

// fileHasDuplicateImport reports whether a Go source file's import block
// names the same import path twice, a condition two independently
// generated edits can produce when each adds its own copy of a dependency.
func fileHasDuplicateImport(root, relPath string) bool {
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return false
	}

	seen := make(map[string]struct{})
	inBlock := false
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "import (":
			inBlock = true
			continue
		case inBlock && trimmed == ")":
			return false
		case trimmed == "" || strings.HasPrefix(trimmed, "//"):
			continue
		}

		if !inBlock && !strings.HasPrefix(trimmed, "import ") {
			continue
		}

		match := importLineRe.FindStringSubmatch(trimmed)
		if match == nil {
			continue
		}
		path := match[1]
		if _, dup := seen[path]; dup {
			return true
		}
		seen[path] = struct{}{}

		if !inBlock {
			return false
		}
	}
	return false
}
