// migrate.go brings loop state files of any known schema version to the
// current shape. Version detection: a file without a schema_version tag is
// treated as the oldest known version (v1).
package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// legacyStateV1 is the oldest known on-disk shape. It predates the status
// enum (an "active" boolean carried the lifecycle), kept a single one-shot
// hint list, and tracked the checklist count and content snapshot under
// older field names.
type legacyStateV1 struct {
	Name              string    `json:"name"`
	TaskFile          string    `json:"task_file"`
	Iteration         int       `json:"iteration"`
	MaxIterations     int       `json:"max_iterations"`
	ItemsPerIteration int       `json:"items_per_iteration"`
	ReflectEvery      int       `json:"reflect_every"`
	Active            *bool     `json:"active"`
	Status            string    `json:"status"`
	Mode              string    `json:"mode"`
	StartedAt         time.Time `json:"started_at"`
	CompletedAt       time.Time `json:"completed_at"`
	Hints             []string  `json:"hints"`
	ChecklistDone     int       `json:"checklist_done"`
	LastHash          string    `json:"last_hash"`
	LastSize          int       `json:"last_size"`
}

// Migrate converts a raw loop state payload of any known schema version into
// a fully-populated current-version LoopState. It returns an error only for
// truly unrecoverable input: a payload that is not a JSON object, or one
// with a missing/empty name. Callers (Load, List) convert those errors into
// a warning plus "not found"/skip — they never propagate further.
func Migrate(data []byte) (*LoopState, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("state is not a JSON object: %w", err)
	}

	version := 1
	if rawVer, ok := probe["schema_version"]; ok {
		var v int
		if err := json.Unmarshal(rawVer, &v); err == nil && v > 0 {
			version = v
		}
	}

	var st *LoopState
	switch {
	case version <= 1:
		var legacy legacyStateV1
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decoding v1 state: %w", err)
		}
		st = upgradeV1(legacy)
	default:
		// v2 added the fields the current struct carries minus the
		// context-health counters and per-iteration scratch; those decode
		// to zero values and normalize fills them. Unknown future versions
		// are decoded the same way rather than rejected.
		st = &LoopState{}
		if err := json.Unmarshal(data, st); err != nil {
			return nil, fmt.Errorf("decoding state: %w", err)
		}
	}

	normalize(st)
	if st.Name == "" {
		return nil, fmt.Errorf("state has no loop name")
	}
	return st, nil
}

// upgradeV1 renames v1 fields into the current shape. The lifecycle boolean
// becomes the status enum (true -> active, false -> paused) unless an
// explicit status string is already present. Fields v1 never had are left
// zero for normalize to default.
func upgradeV1(legacy legacyStateV1) *LoopState {
	status := legacy.Status
	if status == "" && legacy.Active != nil {
		if *legacy.Active {
			status = StatusActive
		} else {
			status = StatusPaused
		}
	}
	return &LoopState{
		Name:               legacy.Name,
		TaskFile:           legacy.TaskFile,
		Iteration:          legacy.Iteration,
		MaxIterations:      legacy.MaxIterations,
		ItemsPerIteration:  legacy.ItemsPerIteration,
		ReflectEvery:       legacy.ReflectEvery,
		Status:             status,
		Mode:               legacy.Mode,
		StartedAt:          legacy.StartedAt,
		CompletedAt:        legacy.CompletedAt,
		PendingHints:       legacy.Hints,
		LastChecklistCount: legacy.ChecklistDone,
		LastTaskFileHash:   legacy.LastHash,
		LastTaskFileSize:   legacy.LastSize,
	}
}

// normalize fills every field's documented default, one field at a time, so
// each default is independently testable. It also stamps the current schema
// version: after any load, no caller ever observes an older shape. Partially
// written current-version files pass through here too, which back-fills any
// missing field.
func normalize(st *LoopState) {
	st.SchemaVersion = CurrentSchemaVersion

	if st.Iteration < 1 {
		st.Iteration = 1
	}
	if st.MaxIterations < 0 {
		st.MaxIterations = 0
	}
	if st.ItemsPerIteration < 0 {
		st.ItemsPerIteration = 0
	}
	if st.ReflectEvery < 0 {
		st.ReflectEvery = 0
	}

	switch st.Status {
	case StatusActive, StatusPaused, StatusCompleted:
	default:
		// Unknown or missing lifecycle: paused is the safe default — the
		// loop never runs without an explicit resume.
		st.Status = StatusPaused
	}

	switch st.Mode {
	case ModeBuild, ModePlan:
	default:
		st.Mode = ModeBuild
	}

	if st.LastTaskFileSize < 0 {
		st.LastTaskFileSize = 0
	}
	if st.CompactionCount < 0 {
		st.CompactionCount = 0
	}
	if st.SessionRotations < 0 {
		st.SessionRotations = 0
	}
	if st.NoProgressStreak < 0 {
		st.NoProgressStreak = 0
	}
	if st.LastChecklistCount < 0 {
		st.LastChecklistCount = 0
	}
	if st.CurrentIterationToolCalls < 0 {
		st.CurrentIterationToolCalls = 0
	}
}

// NewLoopState returns a fully-populated state for a freshly started loop.
func NewLoopState(name, taskFile string) *LoopState {
	st := &LoopState{
		Name:      name,
		TaskFile:  taskFile,
		Iteration: 1,
		Status:    StatusActive,
		Mode:      ModeBuild,
		StartedAt: time.Now().UTC(),
	}
	normalize(st)
	return st
}
