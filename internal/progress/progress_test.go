package progress

import (
	"testing"

	"github.com/agusx1211/loopd/internal/store"
)

func TestUpdateStreak(t *testing.T) {
	st := store.NewLoopState("t", "TASK.md")

	// Non-positive deltas increment monotonically.
	for i, delta := range []int{0, -1, 0} {
		Update(st, delta)
		if st.NoProgressStreak != i+1 {
			t.Errorf("streak after %d updates = %d, want %d", i+1, st.NoProgressStreak, i+1)
		}
	}
	if !Struggling(st) {
		t.Error("streak of 3 should flag struggling")
	}

	// Any positive delta strictly resets to zero.
	Update(st, 2)
	if st.NoProgressStreak != 0 {
		t.Errorf("streak after positive delta = %d, want 0", st.NoProgressStreak)
	}
	if Struggling(st) {
		t.Error("reset streak still flagged struggling")
	}
}

func TestStrugglingThreshold(t *testing.T) {
	st := store.NewLoopState("t", "TASK.md")
	st.NoProgressStreak = StruggleThreshold - 1
	if Struggling(st) {
		t.Error("below threshold flagged")
	}
	st.NoProgressStreak = StruggleThreshold
	if !Struggling(st) {
		t.Error("at threshold not flagged")
	}
}
