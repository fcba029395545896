package store

import "time"

// CurrentSchemaVersion is the schema version stamped on every saved loop
// state file. Load always normalizes older files to this version.
const CurrentSchemaVersion = 3

// Loop lifecycle statuses.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Loop prompt modes.
const (
	ModeBuild = "build"
	ModePlan  = "plan"
)

// LoopState is the persistent record of one named loop. One JSON file on
// disk per loop, keyed by sanitized name.
type LoopState struct {
	SchemaVersion int `json:"schema_version"`

	// Identity.
	Name     string `json:"name"`
	TaskFile string `json:"task_file"`

	// Iteration tracking.
	Iteration           int    `json:"iteration"`                      // >= 1
	MaxIterations       int    `json:"max_iterations"`                 // 0 = unlimited
	ItemsPerIteration   int    `json:"items_per_iteration"`            // advisory target per turn
	ReflectEvery        int    `json:"reflect_every"`                  // 0 = never
	ReflectInstructions string `json:"reflect_instructions,omitempty"` // extra guidance for checkpoints

	// Lifecycle.
	Status      string    `json:"status"` // "active", "paused", "completed"
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// Mode and template override.
	Mode           string `json:"mode"` // "plan" or "build"
	PromptTemplate string `json:"prompt_template,omitempty"`

	// Operator hints. Pending hints are consumed after one injection;
	// sticky hints persist every iteration.
	PendingHints []string `json:"pending_hints,omitempty"`
	StickyHints  []string `json:"sticky_hints,omitempty"`

	// Checkpoint snapshot of the task document.
	LastTaskFileHash  string `json:"last_task_file_hash,omitempty"`
	LastTaskFileSize  int    `json:"last_task_file_size"`
	CheckpointRetried bool   `json:"checkpoint_retried"`

	// Context-health counters, incremented by external events.
	CompactionCount  int `json:"compaction_count"`
	SessionRotations int `json:"session_rotations"`

	// Progress tracking.
	NoProgressStreak   int `json:"no_progress_streak"`
	LastChecklistCount int `json:"last_checklist_count"`

	// Per-iteration scratch, reset every iteration.
	IterationStartedAt        time.Time `json:"iteration_started_at,omitempty"`
	CurrentIterationToolCalls int       `json:"current_iteration_tool_calls"`
	CurrentIterationFiles     []string  `json:"current_iteration_files,omitempty"`
}

// LockInfo describes an in-flight state mutation for a loop name. It is
// ephemeral — it exists only to serialize writes within this process.
type LockInfo struct {
	Owner     string    `json:"owner"` // hex session identifier
	PID       int       `json:"pid"`
	CreatedAt time.Time `json:"created_at"`
}

// Age returns how long the lock has been held.
func (l LockInfo) Age() time.Duration {
	return time.Since(l.CreatedAt)
}
