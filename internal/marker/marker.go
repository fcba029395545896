// Package marker scans worker output for standalone completion and abort
// signals. A marker counts only when its exact tag text stands alone on a
// line outside any fenced code block; anything weaker — embedded in prose,
// quoted, wrong casing — never matches.
package marker

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Literal marker tags the worker emits to end a loop.
const (
	CompleteTag = "<promise>COMPLETE</promise>"
	AbortTag    = "<promise>ABORT</promise>"
)

// Signal is the parsed outcome of a marker scan.
type Signal int

const (
	None Signal = iota
	Complete
	Abort
)

func (s Signal) String() string {
	switch s {
	case Complete:
		return "complete"
	case Abort:
		return "abort"
	default:
		return "none"
	}
}

// Detect scans text for completion/abort markers. Worker output comes from a
// terminal-attached agent, so ANSI escape sequences are stripped before the
// scan. The scan is a single pass over lines carrying an inside-fence
// boolean, toggled on any line that starts with ``` or ~~~ after trimming;
// an unclosed fence extends to end of text. Finding both markers outside
// fences is an ambiguous signal and reports None — safer than guessing.
func Detect(text string) Signal {
	text = ansi.Strip(text)

	var (
		insideFence  bool
		seenComplete bool
		seenAbort    bool
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~") {
			insideFence = !insideFence
			continue
		}
		if insideFence {
			continue
		}
		switch line {
		case CompleteTag:
			seenComplete = true
		case AbortTag:
			seenAbort = true
		}
	}

	switch {
	case seenComplete && seenAbort:
		return None
	case seenComplete:
		return Complete
	case seenAbort:
		return Abort
	default:
		return None
	}
}
