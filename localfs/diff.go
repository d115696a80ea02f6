package localfs

import (
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// maxDiffLines bounds the diff included in mutation result messages.
const maxDiffLines = 100

// generateDiff renders a unified diff between before and after, truncated at
// maxDiffLines.
func generateDiff(before, after, path string) string {
	name := filepath.Base(path)
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name + " (before)",
		ToFile:   name + " (after)",
		Context:  3,
	})
	if err != nil {
		return "Failed to generate diff: " + err.Error()
	}
	if text == "" {
		return "No changes detected in diff"
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > maxDiffLines {
		lines = lines[:maxDiffLines]
		lines = append(lines, "... (diff truncated after 100 lines)")
	}
	return strings.Join(lines, "\n")
}
