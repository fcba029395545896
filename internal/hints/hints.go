// Package hints manages queued operator guidance for a loop: one-shot hints
// injected into exactly one prompt, and sticky hints injected every
// iteration.
package hints

import (
	"fmt"

	"github.com/agusx1211/loopd/internal/store"
)

const (
	// MaxHintLength is the rune limit per hint; longer hints are truncated
	// with a warning rather than rejected.
	MaxHintLength = 500

	// MaxHints caps the combined pending+sticky queue size. Additions past
	// the cap are rejected outright — never silently dropped.
	MaxHints = 20
)

// Add queues a hint. Returns a human-readable warning when the hint was
// truncated, and an error when the queues are already at capacity.
func Add(st *store.LoopState, text string, sticky bool) (warning string, err error) {
	if count(st) >= MaxHints {
		return "", fmt.Errorf("max hints (%d) reached for loop %q; clear hints before adding more", MaxHints, st.Name)
	}

	if runes := []rune(text); len(runes) > MaxHintLength {
		text = string(runes[:MaxHintLength])
		warning = fmt.Sprintf("hint truncated to %d characters", MaxHintLength)
	}

	if sticky {
		st.StickyHints = append(st.StickyHints, text)
	} else {
		st.PendingHints = append(st.PendingHints, text)
	}
	return warning, nil
}

// Clear empties both queues.
func Clear(st *store.LoopState) {
	st.PendingHints = nil
	st.StickyHints = nil
}

// Consume empties the one-shot queue. Call exactly once after the pending
// hints have been folded into a rendered prompt — never before, so a
// retried or duplicated prompt still carries them.
func Consume(st *store.LoopState) {
	st.PendingHints = nil
}

// All returns the hints to inject into the next prompt: sticky first, then
// one-shot.
func All(st *store.LoopState) []string {
	out := make([]string, 0, len(st.StickyHints)+len(st.PendingHints))
	out = append(out, st.StickyHints...)
	out = append(out, st.PendingHints...)
	return out
}

func count(st *store.LoopState) int {
	return len(st.PendingHints) + len(st.StickyHints)
}
