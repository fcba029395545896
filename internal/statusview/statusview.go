// Package statusview renders a loop's state for the terminal.
package statusview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agusx1211/loopd/internal/history"
	"github.com/agusx1211/loopd/internal/progress"
	"github.com/agusx1211/loopd/internal/store"
)

// Color palette - dark theme inspired by Catppuccin Mocha
var (
	colorOverlay  = lipgloss.Color("#6c7086")
	colorText     = lipgloss.Color("#cdd6f4")
	colorRed      = lipgloss.Color("#f38ba8")
	colorGreen    = lipgloss.Color("#a6e3a1")
	colorYellow   = lipgloss.Color("#f9e2af")
	colorMauve    = lipgloss.Color("#cba6f7")
	colorLavender = lipgloss.Color("#b4befe")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorMauve)
	labelStyle  = lipgloss.NewStyle().Foreground(colorLavender)
	valueStyle  = lipgloss.NewStyle().Foreground(colorText)
	dimStyle    = lipgloss.NewStyle().Foreground(colorOverlay)
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	pausedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	doneStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorLavender)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
)

// Render builds the styled status block for one loop. When styled is
// false every lipgloss style is skipped and plain text comes back, for
// pipes and dumb terminals.
func Render(st *store.LoopState, recs []history.Record, styled bool) string {
	if !styled {
		return renderPlain(st, recs)
	}

	var lines []string
	lines = append(lines, titleStyle.Render("Loop "+st.Name))
	lines = append(lines, field("Status", statusBadge(st.Status)))
	lines = append(lines, field("Task file", valueStyle.Render(st.TaskFile)))
	lines = append(lines, field("Mode", valueStyle.Render(st.Mode)))
	lines = append(lines, field("Iteration", valueStyle.Render(iterationText(st))))
	lines = append(lines, field("Checklist", valueStyle.Render(fmt.Sprintf("%d items done", st.LastChecklistCount))))

	if avg, ok := averageDuration(recs); ok {
		lines = append(lines, field("Avg iteration", valueStyle.Render(formatDuration(avg))))
	}
	if hints := len(st.PendingHints) + len(st.StickyHints); hints > 0 {
		lines = append(lines, field("Hints queued", valueStyle.Render(
			fmt.Sprintf("%d (%d sticky)", hints, len(st.StickyHints)))))
	}
	if st.CompactionCount > 0 || st.SessionRotations > 0 {
		lines = append(lines, field("Context health", dimStyle.Render(
			fmt.Sprintf("%d compactions, %d rotations", st.CompactionCount, st.SessionRotations))))
	}
	if progress.Struggling(st) {
		lines = append(lines, warnStyle.Render(
			fmt.Sprintf("⚠ struggling: %d iterations without progress", st.NoProgressStreak)))
	}
	lines = append(lines, dimStyle.Render("Started "+st.StartedAt.Format("2006-01-02 15:04")))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderPlain(st *store.LoopState, recs []history.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Loop %s\n", st.Name)
	fmt.Fprintf(&b, "  Status:     %s\n", st.Status)
	fmt.Fprintf(&b, "  Task file:  %s\n", st.TaskFile)
	fmt.Fprintf(&b, "  Mode:       %s\n", st.Mode)
	fmt.Fprintf(&b, "  Iteration:  %s\n", iterationText(st))
	fmt.Fprintf(&b, "  Checklist:  %d items done\n", st.LastChecklistCount)
	if avg, ok := averageDuration(recs); ok {
		fmt.Fprintf(&b, "  Avg iter:   %s\n", formatDuration(avg))
	}
	if hints := len(st.PendingHints) + len(st.StickyHints); hints > 0 {
		fmt.Fprintf(&b, "  Hints:      %d (%d sticky)\n", hints, len(st.StickyHints))
	}
	if st.CompactionCount > 0 || st.SessionRotations > 0 {
		fmt.Fprintf(&b, "  Context:    %d compactions, %d rotations\n", st.CompactionCount, st.SessionRotations)
	}
	if progress.Struggling(st) {
		fmt.Fprintf(&b, "  WARNING: struggling, %d iterations without progress\n", st.NoProgressStreak)
	}
	fmt.Fprintf(&b, "  Started:    %s", st.StartedAt.Format("2006-01-02 15:04"))
	return b.String()
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-14s", label+":")) + " " + value
}

func statusBadge(status string) string {
	switch status {
	case store.StatusActive:
		return activeStyle.Render("active")
	case store.StatusPaused:
		return pausedStyle.Render("paused")
	case store.StatusCompleted:
		return doneStyle.Render("completed")
	}
	return dimStyle.Render(status)
}

func iterationText(st *store.LoopState) string {
	if st.MaxIterations > 0 {
		return fmt.Sprintf("%d of %d", st.Iteration, st.MaxIterations)
	}
	return fmt.Sprintf("%d (unlimited)", st.Iteration)
}

func averageDuration(recs []history.Record) (time.Duration, bool) {
	if len(recs) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, r := range recs {
		total += r.Duration()
	}
	return total / time.Duration(len(recs)), true
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
	if d >= time.Minute {
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

// RenderList formats one summary line per loop for the list command.
func RenderList(loops []store.LoopState, styled bool) string {
	if len(loops) == 0 {
		return "no loops"
	}
	var lines []string
	for i := range loops {
		st := &loops[i]
		line := fmt.Sprintf("%-20s %-10s iter %-6s %s", st.Name, st.Status, listIter(st), st.TaskFile)
		if styled {
			switch st.Status {
			case store.StatusActive:
				line = activeStyle.Render(line)
			case store.StatusCompleted:
				line = dimStyle.Render(line)
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func listIter(st *store.LoopState) string {
	if st.MaxIterations > 0 {
		return fmt.Sprintf("%d/%d", st.Iteration, st.MaxIterations)
	}
	return fmt.Sprintf("%d", st.Iteration)
}
