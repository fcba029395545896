package controller

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agusx1211/loopd/internal/events"
	"github.com/agusx1211/loopd/internal/marker"
	"github.com/agusx1211/loopd/internal/store"
)

const baseDoc = `# Task

## Goals

Ship the widget.

## Checklist

- [ ] build the frame
- [ ] paint it
`

const checkpointDoc = baseDoc + `
## Checkpoint iteration 5

### Completed

Frame built.

### Failed Approaches

None.

### Key Decisions

Steel over aluminium.

### Current State

Half done.

### Next Steps

Paint.
`

// testSession wires a Session against a temp store, an in-memory task
// document, and a stepped clock.
func testSession(t *testing.T) (*Session, *string) {
	t.Helper()
	s := store.New(t.TempDir())
	if err := s.EnsureDirs(); err != nil {
		t.Fatal(err)
	}

	doc := baseDoc
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	sess := NewSession(s, "widget")
	sess.ReadTask = func(path string) (string, error) {
		if doc == "" {
			return "", errors.New("no such file")
		}
		return doc, nil
	}
	sess.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return sess, &doc
}

func mustStart(t *testing.T, sess *Session, opts StartOptions) {
	t.Helper()
	out, err := sess.Start("TASK.md", opts)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext || out.Prompt == "" {
		t.Fatalf("start outcome = %+v", out)
	}
}

func mustLoad(t *testing.T, sess *Session) *store.LoopState {
	t.Helper()
	st, err := sess.Store.Load(sess.Name)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestAdvanceNext(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	out, err := sess.Advance("did some work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext {
		t.Fatalf("action = %s, want next", out.Action)
	}
	if !strings.Contains(out.Prompt, "Iteration 2") {
		t.Errorf("prompt not advanced: %q", out.Prompt[:80])
	}

	st := mustLoad(t, sess)
	if st.Iteration != 2 || st.Status != store.StatusActive {
		t.Errorf("iteration=%d status=%s", st.Iteration, st.Status)
	}

	recs, err := sess.History.History(sess.Name)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Iteration != 1 {
		t.Errorf("history = %+v", recs)
	}
}

func TestAdvanceCompleteMarker(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	out, err := sess.Advance("all done\n" + marker.CompleteTag + "\n")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionComplete {
		t.Fatalf("action = %s, want complete", out.Action)
	}

	st := mustLoad(t, sess)
	if st.Status != store.StatusCompleted || st.CompletedAt.IsZero() {
		t.Errorf("status=%s completedAt=%v", st.Status, st.CompletedAt)
	}

	tail, err := sess.History.LogTail(sess.Name, 4096)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(tail, "completion marker") {
		t.Errorf("transition event not logged:\n%s", tail)
	}
}

func TestAdvanceAbortMarker(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	out, err := sess.Advance(marker.AbortTag)
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionPause {
		t.Fatalf("action = %s, want pause", out.Action)
	}
	if st := mustLoad(t, sess); st.Status != store.StatusPaused {
		t.Errorf("status = %s", st.Status)
	}
}

func TestAdvanceFencedMarkerIgnored(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	out, err := sess.Advance("```\n" + marker.CompleteTag + "\n```\n")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext {
		t.Fatalf("fenced marker acted on: action = %s", out.Action)
	}
}

func TestUnlimitedIterationsNeverComplete(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{MaxIterations: 0})

	for i := 0; i < 50; i++ {
		out, err := sess.Advance("work")
		if err != nil {
			t.Fatal(err)
		}
		if out.Action != ActionNext {
			t.Fatalf("advance %d: action = %s", i, out.Action)
		}
	}
	if st := mustLoad(t, sess); st.Status != store.StatusActive || st.Iteration != 51 {
		t.Errorf("iteration=%d status=%s", st.Iteration, st.Status)
	}
}

func TestMaxIterationsCompletes(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{MaxIterations: 3})

	for i := 0; i < 2; i++ {
		if out, _ := sess.Advance("work"); out.Action != ActionNext {
			t.Fatalf("advance %d: action = %s", i, out.Action)
		}
	}
	out, err := sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionComplete {
		t.Fatalf("action = %s, want complete", out.Action)
	}
	if st := mustLoad(t, sess); st.Status != store.StatusCompleted {
		t.Errorf("status = %s", st.Status)
	}
}

func TestAdvanceUnreadableTaskFilePauses(t *testing.T) {
	sess, doc := testSession(t)
	mustStart(t, sess, StartOptions{})

	*doc = ""
	out, err := sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionPause || !strings.Contains(out.Message, "cannot read task file") {
		t.Fatalf("outcome = %+v", out)
	}
	if st := mustLoad(t, sess); st.Status != store.StatusPaused {
		t.Errorf("status = %s", st.Status)
	}
}

func TestReflectionRetryThenPause(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{ReflectEvery: 5})

	// Iterations 2 through 5 advance normally; the gate fires while
	// moving to iteration 6.
	for i := 0; i < 4; i++ {
		if out, _ := sess.Advance("work"); out.Action != ActionNext {
			t.Fatalf("advance %d: action = %s", i, out.Action)
		}
	}

	out, err := sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionRetry {
		t.Fatalf("action = %s, want retry", out.Action)
	}
	if len(out.Reasons) == 0 {
		t.Error("retry carries no reasons")
	}
	if !strings.Contains(out.Prompt, "Checkpoint Rejected") {
		t.Error("retry prompt missing rejection header")
	}
	st := mustLoad(t, sess)
	if st.Iteration != 5 || !st.CheckpointRetried {
		t.Errorf("iteration=%d retried=%v", st.Iteration, st.CheckpointRetried)
	}

	// Repeating without fixing the document pauses the loop.
	out, err = sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionPause {
		t.Fatalf("action = %s, want pause", out.Action)
	}
	if st := mustLoad(t, sess); st.Status != store.StatusPaused {
		t.Errorf("status = %s", st.Status)
	}
}

func TestReflectionRetryThenFixed(t *testing.T) {
	sess, doc := testSession(t)
	mustStart(t, sess, StartOptions{ReflectEvery: 5})

	for i := 0; i < 4; i++ {
		sess.Advance("work")
	}
	if out, _ := sess.Advance("work"); out.Action != ActionRetry {
		t.Fatalf("action = %s, want retry", out.Action)
	}

	*doc = checkpointDoc
	out, err := sess.Advance("wrote the checkpoint")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext {
		t.Fatalf("action = %s, want next", out.Action)
	}
	st := mustLoad(t, sess)
	if st.Iteration != 6 {
		t.Errorf("iteration = %d", st.Iteration)
	}
	if st.CheckpointRetried {
		t.Error("retried flag not reset")
	}
	if st.LastTaskFileHash == "" || st.LastTaskFileSize != len(checkpointDoc) {
		t.Errorf("snapshot not taken: hash=%q size=%d", st.LastTaskFileHash, st.LastTaskFileSize)
	}
}

func TestStartSnapshotsDocument(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	st := mustLoad(t, sess)
	if st.LastTaskFileHash == "" || st.LastTaskFileSize != len(baseDoc) {
		t.Errorf("no baseline snapshot: hash=%q size=%d", st.LastTaskFileHash, st.LastTaskFileSize)
	}
}

func TestReflectionRejectsDocumentUnchangedSinceStart(t *testing.T) {
	sess, doc := testSession(t)
	*doc = checkpointDoc
	mustStart(t, sess, StartOptions{ReflectEvery: 5})

	// The document carries a valid checkpoint from the outset but never
	// moves; the first gate must still reject it as unchanged.
	for i := 0; i < 4; i++ {
		if out, _ := sess.Advance("work"); out.Action != ActionNext {
			t.Fatalf("advance %d: action = %s", i, out.Action)
		}
	}
	out, err := sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionRetry {
		t.Fatalf("action = %s, want retry", out.Action)
	}
	var unchanged bool
	for _, r := range out.Reasons {
		if strings.Contains(r, "unchanged") {
			unchanged = true
		}
	}
	if !unchanged {
		t.Errorf("reasons = %v, want an unchanged rejection", out.Reasons)
	}
}

func TestRetryTurnRecordedOnce(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{ReflectEvery: 5})

	for i := 0; i < 4; i++ {
		sess.Advance("work")
	}
	if out, _ := sess.Advance("work"); out.Action != ActionRetry {
		t.Fatalf("action = %s, want retry", out.Action)
	}
	streakAfterRetry := mustLoad(t, sess).NoProgressStreak

	// The re-fired gate covers an iteration already on the books; it
	// must not append a second record or bump the streak again.
	if out, _ := sess.Advance("work"); out.Action != ActionPause {
		t.Fatalf("action = %s, want pause", out.Action)
	}

	recs, err := sess.History.History(sess.Name)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 {
		t.Errorf("history has %d records, want 5", len(recs))
	}
	for i, r := range recs {
		if r.Iteration != i+1 {
			t.Errorf("record %d covers iteration %d", i, r.Iteration)
		}
	}
	if st := mustLoad(t, sess); st.NoProgressStreak != streakAfterRetry {
		t.Errorf("streak = %d after the retry turn, want %d", st.NoProgressStreak, streakAfterRetry)
	}
}

func TestReflectionValidCheckpointPassesFirstTry(t *testing.T) {
	sess, doc := testSession(t)
	mustStart(t, sess, StartOptions{ReflectEvery: 5})

	for i := 0; i < 4; i++ {
		sess.Advance("work")
	}
	*doc = checkpointDoc
	out, err := sess.Advance("wrote the checkpoint")
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext {
		t.Fatalf("action = %s, want next", out.Action)
	}
}

func TestStruggleStreak(t *testing.T) {
	sess, doc := testSession(t)
	mustStart(t, sess, StartOptions{})

	ch := make(chan any, 64)
	sess.Events = ch

	for i := 0; i < 3; i++ {
		sess.Advance("no progress")
	}
	if st := mustLoad(t, sess); st.NoProgressStreak != 3 {
		t.Errorf("streak = %d", st.NoProgressStreak)
	}

	var struggled bool
	for len(ch) > 0 {
		if m, ok := (<-ch).(events.StruggleMsg); ok {
			struggled = true
			if m.Streak != 3 {
				t.Errorf("struggle streak = %d", m.Streak)
			}
		}
	}
	if !struggled {
		t.Error("no struggle event emitted")
	}

	// Checking an item off resets the streak on the next advance.
	*doc = strings.Replace(baseDoc, "- [ ] build the frame", "- [x] build the frame", 1)
	sess.Advance("built the frame")
	if st := mustLoad(t, sess); st.NoProgressStreak != 0 {
		t.Errorf("streak after progress = %d", st.NoProgressStreak)
	}
}

func TestHintsConsumedAfterPrompt(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	if _, err := sess.AddHint("check the paint supplier", false); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.AddHint("always verify measurements", true); err != nil {
		t.Fatal(err)
	}

	out, err := sess.Advance("work")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.Prompt, "check the paint supplier") ||
		!strings.Contains(out.Prompt, "always verify measurements") {
		t.Error("hints missing from prompt")
	}

	st := mustLoad(t, sess)
	if len(st.PendingHints) != 0 {
		t.Error("one-shot hint survived injection")
	}
	if len(st.StickyHints) != 1 {
		t.Error("sticky hint dropped")
	}
}

func TestStopAndResume(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	if out, err := sess.Stop(); err != nil || out.Action != ActionPause {
		t.Fatalf("stop: out=%+v err=%v", out, err)
	}
	if cur := sess.Store.Current(); cur != "" {
		t.Errorf("current pointer still %q after stop", cur)
	}

	// Advancing a paused loop is refused without state damage.
	if out, err := sess.Advance("work"); err != nil || out.Action != ActionPause {
		t.Fatalf("advance while paused: out=%+v err=%v", out, err)
	}
	if st := mustLoad(t, sess); st.Iteration != 1 {
		t.Errorf("paused loop advanced to %d", st.Iteration)
	}

	out, err := sess.Resume()
	if err != nil {
		t.Fatal(err)
	}
	if out.Action != ActionNext || out.Prompt == "" {
		t.Fatalf("resume outcome = %+v", out)
	}
	if st := mustLoad(t, sess); st.Status != store.StatusActive {
		t.Errorf("status = %s", st.Status)
	}
	if cur := sess.Store.Current(); cur != "widget" {
		t.Errorf("current = %q", cur)
	}
}

func TestResumeCompletedFails(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})
	sess.Advance(marker.CompleteTag)

	if _, err := sess.Resume(); err == nil {
		t.Fatal("resuming a completed loop succeeded")
	}
}

func TestSetMode(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	if err := sess.SetMode("plan"); err != nil {
		t.Fatal(err)
	}
	if st := mustLoad(t, sess); st.Mode != store.ModePlan {
		t.Errorf("mode = %s", st.Mode)
	}
	if err := sess.SetMode("yolo"); err == nil {
		t.Error("invalid mode accepted")
	}
}

func TestRotateAndCompacted(t *testing.T) {
	sess, doc := testSession(t)
	mustStart(t, sess, StartOptions{})
	hashAtStart := mustLoad(t, sess).LastTaskFileHash

	*doc = checkpointDoc
	if err := sess.Rotate(); err != nil {
		t.Fatal(err)
	}
	if err := sess.Compacted(); err != nil {
		t.Fatal(err)
	}

	st := mustLoad(t, sess)
	if st.SessionRotations != 1 || st.CompactionCount != 1 {
		t.Errorf("rotations=%d compactions=%d", st.SessionRotations, st.CompactionCount)
	}
	if st.LastTaskFileHash == hashAtStart {
		t.Error("rotate did not refresh the task document snapshot")
	}
}

func TestNoteActivity(t *testing.T) {
	sess, _ := testSession(t)
	mustStart(t, sess, StartOptions{})

	if err := sess.NoteActivity(3, "a.go", "b.go"); err != nil {
		t.Fatal(err)
	}
	if err := sess.NoteActivity(2, "a.go"); err != nil {
		t.Fatal(err)
	}

	st := mustLoad(t, sess)
	if st.CurrentIterationToolCalls != 5 {
		t.Errorf("tool calls = %d", st.CurrentIterationToolCalls)
	}
	if len(st.CurrentIterationFiles) != 2 {
		t.Errorf("files = %v", st.CurrentIterationFiles)
	}
}
