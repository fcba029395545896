// Package task parses the worker-editable task document: Goals, the
// checklist, and accumulated checkpoint sections.
package task

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Recognized headings in the task document.
const (
	GoalsHeading      = "## Goals"
	ChecklistHeading  = "## Checklist"
	CheckpointHeading = "## Checkpoint"
)

// Checklist summarizes the done/total counts of checklist lines.
type Checklist struct {
	Done  int
	Total int
}

// Delta returns done minus a prior done count.
func (c Checklist) Delta(priorDone int) int {
	return c.Done - priorDone
}

// CountChecklist scans the whole document for checklist lines: `- [ ]` for
// pending and `- [x]` for done, case-insensitive on the x.
func CountChecklist(content string) Checklist {
	var c Checklist
	for _, line := range strings.Split(content, "\n") {
		switch classifyChecklistLine(line) {
		case checklistPending:
			c.Total++
		case checklistDone:
			c.Total++
			c.Done++
		}
	}
	return c
}

type checklistKind int

const (
	checklistNone checklistKind = iota
	checklistPending
	checklistDone
)

func classifyChecklistLine(line string) checklistKind {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "- [ ]") {
		return checklistPending
	}
	if len(line) >= 5 && strings.HasPrefix(line, "- [") && line[4] == ']' {
		if line[3] == 'x' || line[3] == 'X' {
			return checklistDone
		}
	}
	return checklistNone
}

// ChecklistItems returns the document's pending and done checklist lines in
// order, trimmed.
func ChecklistItems(content string) (pending, done []string) {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch classifyChecklistLine(line) {
		case checklistPending:
			pending = append(pending, trimmed)
		case checklistDone:
			done = append(done, trimmed)
		}
	}
	return pending, done
}

// Hash returns the hex SHA-256 of the document content.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Section extracts the body of a `## <title>` section: from the heading line
// to the next heading of level one or two, exclusive. The heading line
// itself is included. Returns "" when the heading is absent.
func Section(content, heading string) string {
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		if headingMatches(line, heading) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if isTopHeading(lines[i]) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

// LatestCheckpoint returns the last `## Checkpoint <label>` block in the
// document. A document accumulates checkpoints over time; only the latest
// one is graded or carried into sliced prompts.
func LatestCheckpoint(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	start := -1
	for i, line := range lines {
		if headingMatches(line, CheckpointHeading) {
			start = i
		}
	}
	if start < 0 {
		return "", false
	}
	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if isTopHeading(lines[i]) {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n"), true
}

// headingMatches reports whether line is the given heading, allowing a
// trailing label ("## Checkpoint 3") and case differences.
func headingMatches(line, heading string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(strings.ToLower(line), strings.ToLower(heading)) {
		return false
	}
	rest := line[len(heading):]
	return rest == "" || strings.HasPrefix(rest, " ")
}

// isTopHeading reports whether line starts a level-1 or level-2 heading.
func isTopHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "# ") || strings.HasPrefix(trimmed, "## ")
}
