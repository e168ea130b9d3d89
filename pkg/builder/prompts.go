package builder

import (
	"fmt"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/types"
)

const searchReplaceSystemPrompt = `You are an expert software engineer executing one step of an approved plan.
Respond with ONLY a JSON object, no prose and no code fences:
{"patches": [{"action": "replace"|"create"|"delete", "file": "relative/path", "search_block": "exact text to find", "replace_block": "replacement text", "content": "full file content for create"}]}
Rules:
- search_block must be copied verbatim from the current file and match exactly once.
- Never use placeholder paths like path/to/file or blocks like "..." or "existing code".
- Use delete only when the plan explicitly calls for removing a file.
If you genuinely cannot proceed without more context, respond with ONLY:
{"needs_context": true, "queries": ["..."], "files": ["..."], "reason": "..."}`

const fileWritesSystemPrompt = `You are an expert software engineer executing one step of an approved plan.
Respond with ONLY a JSON object, no prose and no code fences:
{"files": [{"path": "relative/path", "content": "complete new file content"}]}
Each entry fully overwrites the named file, so always emit the whole file.
Never use placeholder paths like path/to/file or elided content like "...".
If you genuinely cannot proceed without more context, respond with ONLY:
{"needs_context": true, "queries": ["..."], "files": ["..."], "reason": "..."}`

const toolCallsSystemPrompt = `You are an expert software engineer executing one step of an approved plan.
Use the provided tools to inspect and edit the workspace. Call tools one at
a time and finish with a short plain-text summary of what you changed.`

const freeformSystemPrompt = `You are an expert software engineer executing one step of an approved plan.
Describe the exact edits to make. For each new or rewritten file, emit a
fenced code block whose first line is a comment naming the file path. For a
targeted edit, name the file in backticks and say: replace ` + "`old`" + ` with ` + "`new`" + `.`

func systemPrompt(mode types.RunMode, format types.PatchFormat) string {
	switch mode {
	case types.ModeToolCalls:
		return toolCallsSystemPrompt
	case types.ModeFreeform:
		return freeformSystemPrompt
	default:
		if format == types.FormatFileWrites {
			return fileWritesSystemPrompt
		}
		return searchReplaceSystemPrompt
	}
}

func buildUserPrompt(plan *types.Plan, bundle *types.ContextBundle) string {
	var b strings.Builder
	if bundle != nil && bundle.Request != "" {
		fmt.Fprintf(&b, "Task: %s\n\n", bundle.Request)
	}
	if plan != nil {
		if len(plan.Steps) > 0 {
			b.WriteString("Plan steps:\n")
			for i, step := range plan.Steps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, step)
			}
			b.WriteString("\n")
		}
		if targets := plan.ConcreteTargets(); len(targets) > 0 {
			fmt.Fprintf(&b, "Target files: %s\n", strings.Join(targets, ", "))
		}
		if len(plan.CreateFiles) > 0 {
			fmt.Fprintf(&b, "Files to create: %s\n", strings.Join(plan.CreateFiles, ", "))
		}
		if plan.RiskAssessment != "" {
			fmt.Fprintf(&b, "Risk assessment: %s\n", plan.RiskAssessment)
		}
	}
	if bundle != nil && bundle.Content != "" {
		fmt.Fprintf(&b, "\nWorkspace context:\n%s\n", bundle.Content)
	}
	return b.String()
}

func schemaRepairPrompt(format types.PatchFormat, parseErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your previous response could not be used: %v.\n", parseErr)
	b.WriteString("Respond again with ONLY the JSON object, no prose, no code fences.\n")
	if format == types.FormatFileWrites {
		b.WriteString(`The required shape is {"files": [{"path": "...", "content": "..."}]} with a non-empty files array.`)
	} else {
		b.WriteString(`The required shape is {"patches": [{"action": "...", "file": "...", ...}]} with a non-empty patches array.`)
	}
	return b.String()
}
