package task

import (
	"strings"

	"github.com/agusx1211/loopd/internal/store"
)

// ReasonUnchanged is reported when the document is byte-identical to the
// previous snapshot at a reflection point.
const ReasonUnchanged = "content unchanged since last snapshot"

// RequiredSubsections are the `###` subsections every checkpoint must carry.
var RequiredSubsections = []string{
	"Completed",
	"Failed Approaches",
	"Key Decisions",
	"Current State",
	"Next Steps",
}

// Validation is the graded outcome of a checkpoint check.
type Validation struct {
	Valid   bool
	Reasons []string
}

// ValidateCheckpoint grades the task document at a reflection point.
//
// Change check: when a prior snapshot exists and both hash and length match
// exactly, the document hasn't moved since the last checkpoint. The check is
// skipped entirely on the very first checkpoint — there is nothing to
// compare against.
//
// Structure check: the latest checkpoint block must exist and carry every
// required subsection; each missing subsection is its own reason.
func ValidateCheckpoint(st *store.LoopState, content string) Validation {
	var reasons []string

	if st.LastTaskFileHash != "" {
		if Hash(content) == st.LastTaskFileHash && len(content) == st.LastTaskFileSize {
			reasons = append(reasons, ReasonUnchanged)
		}
	}

	block, ok := LatestCheckpoint(content)
	if !ok {
		reasons = append(reasons, "missing checkpoint section ("+CheckpointHeading+" ...)")
		return Validation{Valid: len(reasons) == 0, Reasons: reasons}
	}

	for _, sub := range RequiredSubsections {
		if !hasSubsection(block, sub) {
			reasons = append(reasons, "checkpoint missing subsection: "+sub)
		}
	}

	return Validation{Valid: len(reasons) == 0, Reasons: reasons}
}

// SnapshotCheckpoint records the document's hash and size on the state.
// Called after a validation passes, and once on initial loop creation so
// the first reflection has a baseline for the change check.
func SnapshotCheckpoint(st *store.LoopState, content string) {
	st.LastTaskFileHash = Hash(content)
	st.LastTaskFileSize = len(content)
}

func hasSubsection(block, name string) bool {
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "### ") {
			continue
		}
		title := strings.TrimSpace(trimmed[4:])
		if strings.EqualFold(title, name) || strings.HasPrefix(strings.ToLower(title), strings.ToLower(name)+" ") {
			return true
		}
	}
	return false
}
