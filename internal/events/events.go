// Package events defines the messages emitted on the host notification
// channel. The interactive status UI (out of process scope) consumes these;
// nothing here depends on how they are rendered.
package events

import "time"

// IterationDoneMsg signals that one worker iteration was recorded.
type IterationDoneMsg struct {
	Loop           string
	Iteration      int
	ChecklistDelta int
	Duration       time.Duration
	Reflection     bool
}

// PromptReadyMsg carries the prompt to forward to the worker for the next
// iteration.
type PromptReadyMsg struct {
	Loop      string
	Iteration int
	Prompt    string
	Retry     bool // a reflection retry rather than a fresh iteration
}

// StatusChangedMsg signals a lifecycle transition.
type StatusChangedMsg struct {
	Loop   string
	From   string
	To     string
	Reason string
}

// StruggleMsg warns that a loop has stalled: consecutive iterations without
// net checklist progress. Advisory only.
type StruggleMsg struct {
	Loop   string
	Streak int
}

// ContextHealthMsg reports a compaction or session rotation counter bump.
type ContextHealthMsg struct {
	Loop             string
	CompactionCount  int
	SessionRotations int
}
