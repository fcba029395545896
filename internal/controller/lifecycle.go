package controller

import (
	"fmt"

	"github.com/agusx1211/loopd/internal/debug"
	"github.com/agusx1211/loopd/internal/events"
	"github.com/agusx1211/loopd/internal/hints"
	"github.com/agusx1211/loopd/internal/prompt"
	"github.com/agusx1211/loopd/internal/store"
	"github.com/agusx1211/loopd/internal/task"
)

// StartOptions carries the operator-tunable knobs for a new loop. Zero
// values fall back to the state defaults.
type StartOptions struct {
	MaxIterations       int
	ItemsPerIteration   int
	ReflectEvery        int
	ReflectInstructions string
	Mode                string
	PromptTemplate      string
}

// Start creates (or restarts) the named loop and returns the first prompt.
// Reusing an existing name begins a fresh lifecycle over the same task file;
// history for the name is kept and appended to.
func (s *Session) Start(taskFile string, opts StartOptions) (Outcome, error) {
	if err := s.Store.EnsureDirs(); err != nil {
		return Outcome{}, err
	}
	content, err := s.readTask(taskFile)
	if err != nil {
		return Outcome{}, fmt.Errorf("task file %s: %w", taskFile, err)
	}

	st := store.NewLoopState(s.Name, taskFile)
	st.StartedAt = s.now()
	st.IterationStartedAt = st.StartedAt
	st.MaxIterations = opts.MaxIterations
	st.ItemsPerIteration = opts.ItemsPerIteration
	st.ReflectEvery = opts.ReflectEvery
	st.ReflectInstructions = opts.ReflectInstructions
	st.PromptTemplate = opts.PromptTemplate
	if opts.Mode != "" {
		st.Mode = opts.Mode
	}
	st.LastChecklistCount = task.CountChecklist(content).Done

	// Baseline snapshot: the first reflection gate must reject a document
	// that has not moved since the loop was created.
	task.SnapshotCheckpoint(st, content)

	p := prompt.BuildIterationPrompt(st, content, st.ReflectEvery == 1)
	hints.Consume(st)

	if err := s.Store.Save(st); err != nil {
		return Outcome{}, err
	}
	if err := s.Store.SetCurrent(s.Name); err != nil {
		return Outcome{}, err
	}
	if err := s.History.AppendEvent(s.Name, "loop started"); err != nil {
		debug.LogKV("controller", "event append failed", "loop", s.Name, "error", err)
	}
	s.emit(events.StatusChangedMsg{Loop: s.Name, From: "", To: store.StatusActive, Reason: "started"})
	s.emit(events.PromptReadyMsg{Loop: s.Name, Iteration: st.Iteration, Prompt: p})

	return Outcome{
		Action:  ActionNext,
		Prompt:  p,
		Message: fmt.Sprintf("loop %q started on %s", s.Name, taskFile),
	}, nil
}

// Stop pauses the loop at the next iteration boundary.
func (s *Session) Stop() (Outcome, error) {
	var out Outcome
	err := s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		if st.Status != store.StatusActive {
			out = Outcome{Action: ActionPause, Message: fmt.Sprintf("loop %q is already %s", st.Name, st.Status)}
			return nil
		}
		s.transition(st, store.StatusPaused, "manual stop", s.now())
		out = Outcome{Action: ActionPause, Message: fmt.Sprintf("loop %q paused at iteration %d", st.Name, st.Iteration)}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if s.Store.Current() == s.Name {
		if err := s.Store.ClearCurrent(); err != nil {
			debug.LogKV("controller", "clear current failed", "loop", s.Name, "error", err)
		}
	}
	return out, nil
}

// Resume reactivates a paused loop and rebuilds the prompt for its current
// iteration. Completed loops stay completed; start a new run instead.
func (s *Session) Resume() (Outcome, error) {
	var out Outcome
	err := s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		switch st.Status {
		case store.StatusCompleted:
			return fmt.Errorf("loop %q is completed; start it again to begin a new run", st.Name)
		case store.StatusActive:
			out = Outcome{Action: ActionNext, Message: fmt.Sprintf("loop %q is already active", st.Name)}
			return nil
		}

		content, rerr := s.readTask(st.TaskFile)
		if rerr != nil {
			return fmt.Errorf("task file %s: %w", st.TaskFile, rerr)
		}

		s.transition(st, store.StatusActive, "resumed", s.now())
		st.IterationStartedAt = s.now()

		isReflectionTurn := st.ReflectEvery > 0 && st.Iteration%st.ReflectEvery == 0
		p := prompt.BuildIterationPrompt(st, content, isReflectionTurn)
		hints.Consume(st)

		s.emit(events.PromptReadyMsg{Loop: st.Name, Iteration: st.Iteration, Prompt: p})
		out = Outcome{
			Action:  ActionNext,
			Prompt:  p,
			Message: fmt.Sprintf("loop %q resumed at iteration %d", st.Name, st.Iteration),
		}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	if err := s.Store.SetCurrent(s.Name); err != nil {
		debug.LogKV("controller", "set current failed", "loop", s.Name, "error", err)
	}
	return out, nil
}

// AddHint queues operator guidance for the next prompt. The returned
// warning, when non-empty, notes that the hint was truncated.
func (s *Session) AddHint(text string, sticky bool) (warning string, err error) {
	err = s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		w, aerr := hints.Add(st, text, sticky)
		warning = w
		return aerr
	})
	return warning, err
}

// ClearHints drops all queued guidance, sticky included.
func (s *Session) ClearHints() error {
	return s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		hints.Clear(st)
		return nil
	})
}

// SetMode switches between plan and build prompting.
func (s *Session) SetMode(mode string) error {
	if mode != store.ModePlan && mode != store.ModeBuild {
		return fmt.Errorf("unknown mode %q (want %q or %q)", mode, store.ModePlan, store.ModeBuild)
	}
	return s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		st.Mode = mode
		return nil
	})
}

// Rotate records a session rotation: the worker's conversational context is
// being discarded, so snapshot the task document first when it is readable.
func (s *Session) Rotate() error {
	return s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		if content, err := s.readTask(st.TaskFile); err == nil {
			task.SnapshotCheckpoint(st, content)
		}
		st.SessionRotations++
		if err := s.History.AppendEvent(st.Name, "session rotated"); err != nil {
			debug.LogKV("controller", "event append failed", "loop", st.Name, "error", err)
		}
		s.emit(events.ContextHealthMsg{
			Loop:             st.Name,
			CompactionCount:  st.CompactionCount,
			SessionRotations: st.SessionRotations,
		})
		return nil
	})
}

// Compacted records a context-compaction notification from the host.
func (s *Session) Compacted() error {
	return s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		st.CompactionCount++
		if err := s.History.AppendEvent(st.Name, "context compacted"); err != nil {
			debug.LogKV("controller", "event append failed", "loop", st.Name, "error", err)
		}
		s.emit(events.ContextHealthMsg{
			Loop:             st.Name,
			CompactionCount:  st.CompactionCount,
			SessionRotations: st.SessionRotations,
		})
		return nil
	})
}

// NoteActivity bumps the per-iteration scratch counters with worker
// activity reported by the host mid-iteration.
func (s *Session) NoteActivity(toolCalls int, files ...string) error {
	return s.Store.WithLock(s.Name, func(st *store.LoopState) error {
		st.CurrentIterationToolCalls += toolCalls
		st.CurrentIterationFiles = appendUnique(st.CurrentIterationFiles, files)
		return nil
	})
}

func appendUnique(have []string, add []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, f := range have {
		seen[f] = struct{}{}
	}
	for _, f := range add {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		have = append(have, f)
	}
	return have
}
