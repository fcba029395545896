// Package history records per-loop iteration history: an append-only
// structured list plus a human-readable log, both size-capped.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agusx1211/loopd/internal/debug"
	"github.com/agusx1211/loopd/internal/store"
)

const (
	// MaxRecords caps the structured history list; the oldest entries are
	// dropped past it.
	MaxRecords = 500

	// MaxLogBytes caps the human-readable log. Past it, the front half of
	// the file is discarded up to the next line boundary.
	MaxLogBytes = 1 << 20

	truncationMarker = "=== log truncated (older entries dropped) ==="
)

// Record is one completed iteration. Immutable once written.
type Record struct {
	Iteration      int       `json:"iteration"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	DurationSecs   int       `json:"duration_secs"`
	ToolCalls      int       `json:"tool_calls"`
	ChecklistDelta int       `json:"checklist_delta"`
	Reflection     bool      `json:"reflection,omitempty"`
}

// Duration returns the recorded duration.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationSecs) * time.Second
}

// Recorder appends iteration records and log lines under one directory.
type Recorder struct {
	dir string
	mu  sync.Mutex
}

// New creates a Recorder writing into dir.
func New(dir string) *Recorder {
	return &Recorder{dir: dir}
}

func (r *Recorder) historyPath(name string) string {
	return filepath.Join(r.dir, store.SanitizeName(name)+".json")
}

func (r *Recorder) logPath(name string) string {
	return filepath.Join(r.dir, store.SanitizeName(name)+".log")
}

// AppendHistory appends one record to the loop's structured history,
// dropping the oldest entries past MaxRecords.
func (r *Recorder) AppendHistory(name string, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.loadHistoryLocked(name)
	if err != nil {
		return err
	}
	records = append(records, rec)
	if len(records) > MaxRecords {
		records = records[len(records)-MaxRecords:]
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history for %q: %w", name, err)
	}
	return os.WriteFile(r.historyPath(name), data, 0644)
}

// History returns the loop's structured history, newest last. A missing or
// corrupt file reads as empty — the history is diagnostic, never load-bearing.
func (r *Recorder) History(name string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadHistoryLocked(name)
}

func (r *Recorder) loadHistoryLocked(name string) ([]Record, error) {
	data, err := os.ReadFile(r.historyPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		debug.LogKV("history", "unreadable history file; starting fresh", "loop", name, "error", err)
		return nil, nil
	}
	return records, nil
}

// AppendLog appends one fixed-format human-readable line for an iteration.
func (r *Recorder) AppendLog(name string, rec Record) error {
	return r.appendLine(name, formatLogLine(rec))
}

// AppendEvent writes a bannered line for an out-of-band event (session
// rotation, manual pause, completion) independent of iteration records.
func (r *Recorder) AppendEvent(name, text string) error {
	line := fmt.Sprintf("[%s] === %s ===", time.Now().Format("2006-01-02 15:04:05"), text)
	return r.appendLine(name, line)
}

// LogTail returns up to maxBytes from the end of the loop's log, starting
// at a line boundary.
func (r *Recorder) LogTail(name string, maxBytes int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.logPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	if maxBytes <= 0 || len(data) <= maxBytes {
		return string(data), nil
	}
	tail := data[len(data)-maxBytes:]
	for i, b := range tail {
		if b == '\n' {
			tail = tail[i+1:]
			break
		}
	}
	return string(tail), nil
}

func (r *Recorder) appendLine(name, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	path := r.logPath(name)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log for %q: %w", name, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing log for %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return r.trimLogLocked(path)
}

// trimLogLocked drops the front half of the log, up to the next line
// boundary, once the file exceeds MaxLogBytes.
func (r *Recorder) trimLogLocked(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= MaxLogBytes {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cut := len(data) / 2
	for cut < len(data) && data[cut] != '\n' {
		cut++
	}
	if cut < len(data) {
		cut++
	}

	trimmed := append([]byte(truncationMarker+"\n"), data[cut:]...)
	debug.LogKV("history", "log trimmed", "path", path, "before", len(data), "after", len(trimmed))
	return os.WriteFile(path, trimmed, 0644)
}

// formatLogLine renders one iteration as a fixed-format log line:
// [timestamp] Iter NNN | duration | delta | tools: N calls [reflection]
func formatLogLine(rec Record) string {
	delta := "→ no change"
	switch {
	case rec.ChecklistDelta > 0:
		delta = fmt.Sprintf("✓ +%d items", rec.ChecklistDelta)
	case rec.ChecklistDelta < 0:
		delta = fmt.Sprintf("✗ %d items", rec.ChecklistDelta)
	}

	line := fmt.Sprintf("[%s] Iter %03d | %s | %s | tools: %d calls",
		rec.EndedAt.Format("2006-01-02 15:04:05"),
		rec.Iteration,
		rec.Duration().Round(time.Second),
		delta,
		rec.ToolCalls,
	)
	if rec.Reflection {
		line += " [reflection]"
	}
	return line
}
