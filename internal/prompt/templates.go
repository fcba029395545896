// Package prompt assembles the instructions sent to the worker each
// iteration: template selection, variable substitution, hint injection,
// and task-content slicing for oversized documents.
package prompt

// Built-in iteration templates. Operators may point a loop at a custom
// template file; these are the fallbacks and the default behavior.
// Substitution tokens use {{key}} syntax; unknown tokens are left untouched
// so template authors can spot typos in rendered output.

const buildTemplate = `# Iteration {{iteration}}{{iteration_limit}} — {{loop_name}}

You are one turn of a long-running build loop. Work from the task document
below. Pick up to {{items_per_iteration}} unchecked checklist items, complete
them, and mark them done in {{task_file}}.

## Rules

- Work in small, verifiable steps. Update the checklist as you go.
- Record anything surprising in the task document, not just in your reply.
- Do not start work beyond the checklist without adding items for it first.
- When every checklist item is done and verified, output {{complete_marker}}
  alone on its own line.
- If the task is impossible or fundamentally misdirected, explain why, then
  output {{abort_marker}} alone on its own line.
{{hints}}
## Task Document

{{task_content}}
`

const planTemplate = `# Iteration {{iteration}}{{iteration_limit}} — {{loop_name}} (planning)

You are one turn of a planning loop. Do not build anything yet. Refine the
task document below: sharpen the Goals section and break the work into
small, independently verifiable checklist items in {{task_file}}.

## Rules

- Every checklist item must be completable in a single worker turn.
- Prefer many small items over few large ones; target {{items_per_iteration}}
  new or refined items per turn.
- Note open questions directly in the task document.
- When the plan is complete and actionable, output {{complete_marker}} alone
  on its own line.
- If planning reveals the task should not be attempted, output
  {{abort_marker}} alone on its own line.
{{hints}}
## Task Document

{{task_content}}
`

// checkpointInstructions is prepended ahead of the normal iteration
// instructions on reflection iterations.
const checkpointInstructions = `# Checkpoint Required

Before any other work this turn, write or update a progress checkpoint in
{{task_file}}. Append a section titled "## Checkpoint {{iteration}}" with
exactly these subsections:

### Completed
### Failed Approaches
### Key Decisions
### Current State
### Next Steps

Be specific: a reader with no other context must be able to resume the work
from this checkpoint alone.
{{reflect_instructions}}
`

// retryHeader leads a reflection-retry prompt, listing what the validator
// rejected.
const retryHeader = `# Checkpoint Rejected

Your previous turn did not produce a valid progress checkpoint. Problems:

{{reasons}}

Fix the checkpoint in {{task_file}} now. This is your last attempt before
the loop is paused for operator review.
`
