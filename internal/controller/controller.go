// Package controller drives the iteration state machine for a loop: it
// interprets worker output, enforces reflection checkpoints, tracks
// progress, and decides what the host should do next.
package controller

import (
	"fmt"
	"os"
	"time"

	"github.com/agusx1211/loopd/internal/debug"
	"github.com/agusx1211/loopd/internal/eventq"
	"github.com/agusx1211/loopd/internal/events"
	"github.com/agusx1211/loopd/internal/hints"
	"github.com/agusx1211/loopd/internal/history"
	"github.com/agusx1211/loopd/internal/marker"
	"github.com/agusx1211/loopd/internal/progress"
	"github.com/agusx1211/loopd/internal/prompt"
	"github.com/agusx1211/loopd/internal/store"
	"github.com/agusx1211/loopd/internal/task"
)

// Action tells the host what to do after an advance.
type Action string

const (
	// ActionNext forwards the prompt to the worker for a fresh iteration.
	ActionNext Action = "next"
	// ActionRetry re-sends the reflection prompt after a rejected checkpoint.
	ActionRetry Action = "retry"
	// ActionPause stops forwarding prompts until the operator resumes.
	ActionPause Action = "pause"
	// ActionComplete ends the loop for good.
	ActionComplete Action = "complete"
)

// Outcome is the structured result of one advance. The host renders Message
// for the operator and, for next/retry, forwards Prompt to the worker.
type Outcome struct {
	Action  Action
	Prompt  string
	Message string
	Reasons []string
}

// Session threads one loop's identity and collaborators through every
// operation. There is no ambient "current loop" global; the host owns the
// session and hands it to whichever command needs it.
type Session struct {
	Name    string
	Store   *store.Store
	History *history.Recorder

	// Events receives advisory progress messages (events package). A nil
	// or full channel is skipped, never blocked on.
	Events chan<- any

	// ReadTask reads the task document. Defaults to os.ReadFile.
	ReadTask func(path string) (string, error)

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// NewSession builds a Session bound to name with default collaborators.
func NewSession(s *store.Store, name string) *Session {
	return &Session{
		Name:    name,
		Store:   s,
		History: history.New(s.HistoryDir()),
	}
}

func (s *Session) readTask(path string) (string, error) {
	if s.ReadTask != nil {
		return s.ReadTask(path)
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Session) emit(msg any) {
	eventq.Offer(s.Events, msg)
}

// Advance runs the state machine once with the worker's latest output.
// It is invoked exactly once per worker turn.
func (s *Session) Advance(output string) (Outcome, error) {
	var out Outcome
	err := s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		out = s.advanceLocked(st, output)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (s *Session) advanceLocked(st *store.LoopState, output string) Outcome {
	if st.Status != store.StatusActive {
		return Outcome{
			Action:  ActionPause,
			Message: fmt.Sprintf("loop %q is %s; resume it first", st.Name, st.Status),
		}
	}

	now := s.now()
	finished := st.Iteration
	content, readErr := s.readTask(st.TaskFile)

	var checklist task.Checklist
	delta := 0
	if readErr == nil {
		checklist = task.CountChecklist(content)
		delta = checklist.Delta(st.LastChecklistCount)
	}

	// A pending retry means this turn re-fires the gate for an iteration
	// already recorded; appending again would double-count it.
	retryTurn := st.CheckpointRetried
	if !retryTurn {
		s.recordIteration(st, finished, now, delta)
		progress.Update(st, delta)
		if progress.Struggling(st) {
			s.emit(events.StruggleMsg{Loop: st.Name, Streak: st.NoProgressStreak})
		}
	}

	switch marker.Detect(output) {
	case marker.Complete:
		s.transition(st, store.StatusCompleted, "completion marker", now)
		return Outcome{
			Action:  ActionComplete,
			Message: fmt.Sprintf("loop %q completed after %d iterations", st.Name, finished),
		}
	case marker.Abort:
		s.transition(st, store.StatusPaused, "abort marker", now)
		return Outcome{
			Action:  ActionPause,
			Message: fmt.Sprintf("loop %q aborted by worker at iteration %d", st.Name, finished),
		}
	}

	st.Iteration++

	if st.MaxIterations > 0 && st.Iteration > st.MaxIterations {
		s.transition(st, store.StatusCompleted, "max iterations reached", now)
		return Outcome{
			Action:  ActionComplete,
			Message: fmt.Sprintf("loop %q reached its limit of %d iterations", st.Name, st.MaxIterations),
		}
	}

	if readErr != nil {
		s.transition(st, store.StatusPaused, "task file unreadable", now)
		return Outcome{
			Action:  ActionPause,
			Message: fmt.Sprintf("cannot read task file %s: %v", st.TaskFile, readErr),
		}
	}

	needsReflection := st.ReflectEvery > 0 && st.Iteration > 1 &&
		(st.Iteration-1)%st.ReflectEvery == 0
	if needsReflection {
		v := task.ValidateCheckpoint(st, content)
		if !v.Valid {
			if !st.CheckpointRetried {
				// Roll the increment back so the reflection gate
				// re-fires on the next advance.
				st.CheckpointRetried = true
				st.Iteration = finished
				p := prompt.BuildRetryPrompt(st, content, v.Reasons)
				hints.Consume(st)
				s.emit(events.PromptReadyMsg{Loop: st.Name, Iteration: st.Iteration, Prompt: p, Retry: true})
				debug.LogKV("controller", "checkpoint rejected; retrying",
					"loop", st.Name, "iteration", finished, "reasons", len(v.Reasons))
				return Outcome{
					Action:  ActionRetry,
					Prompt:  p,
					Message: fmt.Sprintf("checkpoint rejected at iteration %d; asking the worker to fix it", finished),
					Reasons: v.Reasons,
				}
			}
			s.transition(st, store.StatusPaused, "checkpoint invalid after retry", now)
			return Outcome{
				Action:  ActionPause,
				Message: fmt.Sprintf("loop %q paused: checkpoint still invalid after one retry", st.Name),
				Reasons: v.Reasons,
			}
		}
		task.SnapshotCheckpoint(st, content)
		st.CheckpointRetried = false
	}

	st.LastChecklistCount = checklist.Done
	st.IterationStartedAt = now
	st.CurrentIterationToolCalls = 0
	st.CurrentIterationFiles = nil

	isReflectionTurn := st.ReflectEvery > 0 && st.Iteration%st.ReflectEvery == 0
	p := prompt.BuildIterationPrompt(st, content, isReflectionTurn)
	hints.Consume(st)

	s.emit(events.PromptReadyMsg{Loop: st.Name, Iteration: st.Iteration, Prompt: p})
	return Outcome{
		Action:  ActionNext,
		Prompt:  p,
		Message: fmt.Sprintf("iteration %d of loop %q", st.Iteration, st.Name),
	}
}

// recordIteration appends the just-finished iteration to both history
// files and emits the progress event. Recording failures are logged and
// swallowed; bookkeeping must never stop the loop.
func (s *Session) recordIteration(st *store.LoopState, finished int, now time.Time, delta int) {
	started := st.IterationStartedAt
	if started.IsZero() {
		started = now
	}
	rec := history.Record{
		Iteration:      finished,
		StartedAt:      started,
		EndedAt:        now,
		DurationSecs:   int(now.Sub(started) / time.Second),
		ToolCalls:      st.CurrentIterationToolCalls,
		ChecklistDelta: delta,
		Reflection:     st.ReflectEvery > 0 && finished%st.ReflectEvery == 0,
	}
	if err := s.History.AppendHistory(st.Name, rec); err != nil {
		debug.LogKV("controller", "history append failed", "loop", st.Name, "error", err)
	}
	if err := s.History.AppendLog(st.Name, rec); err != nil {
		debug.LogKV("controller", "log append failed", "loop", st.Name, "error", err)
	}
	s.emit(events.IterationDoneMsg{
		Loop:           st.Name,
		Iteration:      finished,
		ChecklistDelta: delta,
		Duration:       now.Sub(started),
		Reflection:     rec.Reflection,
	})
}

// transition flips lifecycle status, stamps completion time where relevant,
// and writes the event line every status change gets.
func (s *Session) transition(st *store.LoopState, to, reason string, now time.Time) {
	from := st.Status
	st.Status = to
	if to == store.StatusCompleted {
		st.CompletedAt = now
	}
	line := fmt.Sprintf("status %s -> %s (%s)", from, to, reason)
	if err := s.History.AppendEvent(st.Name, line); err != nil {
		debug.LogKV("controller", "event append failed", "loop", st.Name, "error", err)
	}
	s.emit(events.StatusChangedMsg{Loop: st.Name, From: from, To: to, Reason: reason})
	debug.LogKV("controller", "status change", "loop", st.Name, "from", from, "to", to, "reason", reason)
}
