package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/agusx1211/loopd/internal/debug"
	"github.com/agusx1211/loopd/internal/hints"
	"github.com/agusx1211/loopd/internal/marker"
	"github.com/agusx1211/loopd/internal/store"
)

// BuildIterationPrompt assembles the prompt for the loop's current
// iteration: template selection by mode (or operator override), hint
// injection, and task-content slicing. On reflection iterations the
// checkpoint-instructions block is prepended ahead of the normal iteration
// instructions.
func BuildIterationPrompt(st *store.LoopState, content string, isReflection bool) string {
	template := selectTemplate(st)
	vars := templateVars(st, content)

	body := RenderTemplate(template, vars)
	if isReflection {
		body = RenderTemplate(checkpointInstructions, vars) + "\n" + body
	}
	return body
}

// BuildRetryPrompt assembles the prompt for a rejected reflection
// checkpoint: the validator's reasons, the checkpoint instructions, then
// the normal iteration instructions.
func BuildRetryPrompt(st *store.LoopState, content string, reasons []string) string {
	vars := templateVars(st, content)

	var list strings.Builder
	for _, r := range reasons {
		list.WriteString("- ")
		list.WriteString(r)
		list.WriteString("\n")
	}
	vars["reasons"] = strings.TrimRight(list.String(), "\n")

	var b strings.Builder
	b.WriteString(RenderTemplate(retryHeader, vars))
	b.WriteString("\n")
	b.WriteString(RenderTemplate(checkpointInstructions, vars))
	b.WriteString("\n")
	b.WriteString(RenderTemplate(selectTemplate(st), vars))
	return b.String()
}

// selectTemplate picks the operator-supplied template when one is set and
// readable, else the built-in template for the loop's mode.
func selectTemplate(st *store.LoopState) string {
	if st.PromptTemplate != "" {
		data, err := os.ReadFile(st.PromptTemplate)
		if err == nil {
			return string(data)
		}
		debug.LogKV("prompt", "template override unreadable; using built-in",
			"loop", st.Name, "path", st.PromptTemplate, "error", err)
	}
	if st.Mode == store.ModePlan {
		return planTemplate
	}
	return buildTemplate
}

func templateVars(st *store.LoopState, content string) map[string]string {
	iterationLimit := ""
	if st.MaxIterations > 0 {
		iterationLimit = fmt.Sprintf(" of %d", st.MaxIterations)
	}

	items := st.ItemsPerIteration
	if items <= 0 {
		items = 3
	}

	reflectInstructions := ""
	if strings.TrimSpace(st.ReflectInstructions) != "" {
		reflectInstructions = "\n" + strings.TrimSpace(st.ReflectInstructions) + "\n"
	}

	return map[string]string{
		"loop_name":            st.Name,
		"task_file":            st.TaskFile,
		"iteration":            fmt.Sprintf("%d", st.Iteration),
		"iteration_limit":      iterationLimit,
		"items_per_iteration":  fmt.Sprintf("%d", items),
		"mode":                 st.Mode,
		"complete_marker":      marker.CompleteTag,
		"abort_marker":         marker.AbortTag,
		"reflect_instructions": reflectInstructions,
		"hints":                hintsSection(st),
		"task_content":         SliceTaskContent(content, DefaultSliceLimit, st.TaskFile),
	}
}

// hintsSection renders queued operator guidance, or "" when there is none.
// The one-shot queue is consumed by the controller after the rendered
// prompt is handed off, never here — a retried prompt must still carry it.
func hintsSection(st *store.LoopState) string {
	all := hints.All(st)
	if len(all) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Operator Guidance\n\n")
	for _, h := range all {
		b.WriteString("- ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	return b.String()
}
