// Package progress tracks consecutive no-progress iterations.
package progress

import "github.com/agusx1211/loopd/internal/store"

// StruggleThreshold is the streak length at which a loop is flagged as
// struggling. Purely advisory: it never blocks iteration, it only surfaces
// a warning in the status view.
const StruggleThreshold = 3

// Update feeds one iteration's checklist delta into the streak counter.
// A positive delta resets the streak; zero or negative increments it.
// Unchecked items (negative delta) count as no-progress rather than being
// tracked as regression separately.
func Update(st *store.LoopState, checklistDelta int) {
	if checklistDelta > 0 {
		st.NoProgressStreak = 0
		return
	}
	st.NoProgressStreak++
}

// Struggling reports whether the loop has gone StruggleThreshold or more
// iterations without net checklist progress.
func Struggling(st *store.LoopState) bool {
	return st.NoProgressStreak >= StruggleThreshold
}
