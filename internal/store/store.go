// Package store persists loop state as versioned JSON files with schema
// migration, corruption-tolerant loading, and per-loop mutual exclusion.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agusx1211/loopd/internal/debug"
)

// LoopdDir is the state directory created inside a project.
const LoopdDir = ".loopd"

// ErrNotFound is returned by Load when no state file exists for a name.
// Corrupt or unmigratable files are reported through Warn and also surface
// as ErrNotFound — storage-layer failures never propagate past this package.
var ErrNotFound = errors.New("loop not found")

// Store reads and writes loop state under <projectDir>/.loopd/.
type Store struct {
	root  string
	locks *lockTable

	// Warn receives non-fatal storage diagnostics (corrupt files, skipped
	// entries). Defaults to stderr.
	Warn func(format string, args ...any)
}

// New creates a Store rooted at projectDir.
func New(projectDir string) *Store {
	return &Store{
		root:  filepath.Join(projectDir, LoopdDir),
		locks: newLockTable(),
		Warn: func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
		},
	}
}

// Root returns the .loopd directory path.
func (s *Store) Root() string {
	return s.root
}

// Exists reports whether the state directory has been initialized.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.loopsDir())
	return err == nil && info.IsDir()
}

// EnsureDirs creates the state directory layout.
func (s *Store) EnsureDirs() error {
	dirs := []string{
		s.root,
		s.loopsDir(),
		s.archiveDir(),
		s.HistoryDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}
	return nil
}

func (s *Store) loopsDir() string   { return filepath.Join(s.root, "loops") }
func (s *Store) archiveDir() string { return filepath.Join(s.loopsDir(), "archive") }

// HistoryDir returns the directory holding per-loop history and log files.
func (s *Store) HistoryDir() string { return filepath.Join(s.root, "history") }

func (s *Store) loopPath(name string) string {
	return filepath.Join(s.loopsDir(), SanitizeName(name)+".json")
}

func (s *Store) archivePath(name string) string {
	return filepath.Join(s.archiveDir(), SanitizeName(name)+".json")
}

// SanitizeName maps a loop name to a filesystem-safe file stem.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Load reads and migrates the state for a named loop. A missing file returns
// ErrNotFound; malformed JSON or a migration failure is reported through
// Warn and also returns ErrNotFound.
func (s *Store) Load(name string) (*LoopState, error) {
	data, err := os.ReadFile(s.loopPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		s.warnf("reading loop %q: %v", name, err)
		return nil, ErrNotFound
	}

	st, err := Migrate(data)
	if err != nil {
		s.warnf("loop %q state unusable: %v", name, err)
		return nil, ErrNotFound
	}
	return st, nil
}

// Save writes a loop state file, stamping the current schema version.
// Last save wins; no partial-write visibility is required beyond that.
func (s *Store) Save(st *LoopState) error {
	if st == nil || strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("saving loop: missing name")
	}
	st.SchemaVersion = CurrentSchemaVersion

	if err := s.EnsureDirs(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding loop %q: %w", st.Name, err)
	}
	path := s.loopPath(st.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing loop %q: %w", st.Name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing loop %q: %w", st.Name, err)
	}
	debug.LogKV("store", "loop saved", "name", st.Name, "iteration", st.Iteration, "status", st.Status)
	return nil
}

// List enumerates all loop states, migrating each. Corrupt entries are
// skipped with a warning, never fatal to the whole listing.
func (s *Store) List(archived bool) ([]LoopState, error) {
	dir := s.loopsDir()
	if archived {
		dir = s.archiveDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var loops []LoopState
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			s.warnf("reading %s: %v", e.Name(), err)
			continue
		}
		st, err := Migrate(data)
		if err != nil {
			s.warnf("skipping %s: %v", e.Name(), err)
			continue
		}
		loops = append(loops, *st)
	}
	sort.Slice(loops, func(i, j int) bool { return loops[i].Name < loops[j].Name })
	return loops, nil
}

// Archive moves a loop's state file into the archive directory. Archived
// loops are kept, never silently dropped.
func (s *Store) Archive(name string) error {
	if err := os.MkdirAll(s.archiveDir(), 0755); err != nil {
		return fmt.Errorf("creating archive dir: %w", err)
	}
	src := s.loopPath(name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := os.Rename(src, s.archivePath(name)); err != nil {
		return fmt.Errorf("archiving loop %q: %w", name, err)
	}
	debug.LogKV("store", "loop archived", "name", name)
	return nil
}

// Delete removes a loop's state file. Explicit operator action only.
func (s *Store) Delete(name string) error {
	err := os.Remove(s.loopPath(name))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting loop %q: %w", name, err)
	}
	debug.LogKV("store", "loop deleted", "name", name)
	return nil
}

// Current pointer: which loop the process is driving. Read and written only
// by synchronous commands, consistent with the single-process model.

func (s *Store) currentPath() string { return filepath.Join(s.root, "current") }

// Current returns the current loop name, or "" when none is set.
func (s *Store) Current() string {
	data, err := os.ReadFile(s.currentPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// SetCurrent records name as the current loop.
func (s *Store) SetCurrent(name string) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	return os.WriteFile(s.currentPath(), []byte(name+"\n"), 0644)
}

// ClearCurrent removes the current loop pointer.
func (s *Store) ClearCurrent() error {
	err := os.Remove(s.currentPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) warnf(format string, args ...any) {
	debug.LogKV("store", "warning", "msg", fmt.Sprintf(format, args...))
	if s.Warn != nil {
		s.Warn(format, args...)
	}
}
