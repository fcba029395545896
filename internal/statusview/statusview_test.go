package statusview

import (
	"strings"
	"testing"
	"time"

	"github.com/agusx1211/loopd/internal/history"
	"github.com/agusx1211/loopd/internal/store"
)

func TestRenderPlain(t *testing.T) {
	st := store.NewLoopState("demo", "TASK.md")
	st.Iteration = 4
	st.MaxIterations = 10
	st.LastChecklistCount = 3
	st.StickyHints = []string{"be careful"}
	st.NoProgressStreak = 3

	recs := []history.Record{
		{DurationSecs: 60},
		{DurationSecs: 180},
	}

	out := Render(st, recs, false)
	for _, want := range []string{
		"Loop demo",
		"active",
		"4 of 10",
		"3 items done",
		"2m00s",
		"1 (1 sticky)",
		"WARNING: struggling, 3 iterations",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPlainUnlimited(t *testing.T) {
	st := store.NewLoopState("demo", "TASK.md")
	out := Render(st, nil, false)
	if !strings.Contains(out, "1 (unlimited)") {
		t.Errorf("unlimited loops not marked:\n%s", out)
	}
	if strings.Contains(out, "Avg iter") {
		t.Error("average shown with no history")
	}
	if strings.Contains(out, "WARNING") {
		t.Error("struggle warning shown for healthy loop")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{2 * time.Hour, "2h00m"},
		{3*time.Hour + 5*time.Minute, "3h05m"},
	}
	for _, c := range cases {
		if got := formatDuration(c.d); got != c.want {
			t.Errorf("formatDuration(%v) = %q, want %q", c.d, got, c.want)
		}
	}
}

func TestRenderList(t *testing.T) {
	loops := []store.LoopState{
		*store.NewLoopState("alpha", "A.md"),
		*store.NewLoopState("beta", "B.md"),
	}
	out := RenderList(loops, false)
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Errorf("loops missing:\n%s", out)
	}
	if RenderList(nil, false) != "no loops" {
		t.Error("empty list not reported")
	}
}
