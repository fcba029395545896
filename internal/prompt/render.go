package prompt

import (
	"fmt"
	"strings"

	"github.com/agusx1211/loopd/internal/task"
)

// DefaultSliceLimit is the size past which the task document is reduced
// before injection into a prompt.
const DefaultSliceLimit = 24_000

// keptDoneItems is how many of the most recent checked checklist items
// survive slicing; older ones collapse into a count.
const keptDoneItems = 5

// RenderTemplate substitutes {{key}} tokens from a flat string map in a
// single pass. Unknown tokens are left untouched rather than blanked so
// template authors can detect typos in rendered output.
func RenderTemplate(template string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		open := strings.Index(template, "{{")
		if open < 0 {
			b.WriteString(template)
			return b.String()
		}
		end := strings.Index(template[open+2:], "}}")
		if end < 0 {
			b.WriteString(template)
			return b.String()
		}
		key := template[open+2 : open+2+end]

		b.WriteString(template[:open])
		if value, ok := vars[key]; ok {
			b.WriteString(value)
		} else {
			b.WriteString(template[open : open+2+end+2])
		}
		template = template[open+2+end+2:]
	}
}

// SliceTaskContent reduces an oversized task document to its load-bearing
// parts: the Goals section verbatim, the checklist reduced to all unchecked
// items plus the last few checked ones, and the latest checkpoint verbatim,
// followed by a truncation notice naming the source path. Content within the
// limit is returned unchanged.
func SliceTaskContent(full string, limit int, path string) string {
	if limit <= 0 || len(full) <= limit {
		return full
	}

	var b strings.Builder

	if goals := task.Section(full, task.GoalsHeading); goals != "" {
		b.WriteString(goals)
		b.WriteString("\n\n")
	}

	pending, done := task.ChecklistItems(full)
	b.WriteString(task.ChecklistHeading)
	b.WriteString("\n\n")
	if dropped := len(done) - keptDoneItems; dropped > 0 {
		fmt.Fprintf(&b, "(%d earlier completed items not shown)\n", dropped)
		done = done[dropped:]
	}
	for _, item := range done {
		b.WriteString(item)
		b.WriteString("\n")
	}
	for _, item := range pending {
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if checkpoint, ok := task.LatestCheckpoint(full); ok {
		b.WriteString(checkpoint)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "(task document truncated; full content in %s)\n", path)
	return b.String()
}
