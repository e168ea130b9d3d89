// Package interpreter converts free-form model prose into patch operations.
// The conversion is a pluggable strategy; the builder only depends on the
// Interpreter interface and validates the output like any other patch
// source.
package interpreter

import (
	"regexp"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/types"
)

// Interpreter turns raw model text into a patch set. The format hint tells
// the implementation which payload family the caller was negotiating, so it
// can prefer whole-file writes or search/replace pairs accordingly.
type Interpreter interface {
	Interpret(raw string, hint types.PatchFormat) ([]types.PatchOperation, error)
}

// Heuristic is the default Interpreter. It understands two prose shapes:
// fenced code blocks annotated with a filename, and targeted
// "replace X with Y in `file`" instructions.
type Heuristic struct{}

var startOfBlockRe = regexp.MustCompile("^\\s*[>|]*```(\\S*)")

// Interpret scans the text for file-annotated code blocks first, then for
// targeted replace instructions. Text yielding neither is a schema failure.
func (h *Heuristic) Interpret(raw string, hint types.PatchFormat) ([]types.PatchOperation, error) {
	if ops := h.fileBlocks(raw); len(ops) > 0 {
		return ops, nil
	}
	if hint != types.FormatFileWrites {
		if ops := h.targetedReplacements(raw); len(ops) > 0 {
			return ops, nil
		}
	}
	return nil, types.NewPatchApplyError(types.ErrClassSchema,
		"free-form response names no file edits")
}

// fileBlocks extracts fenced code blocks whose opening line (or the line
// after it) carries a filename marker like "# src/app.ts", producing
// full-file create operations.
func (h *Heuristic) fileBlocks(raw string) []types.PatchOperation {
	var ops []types.PatchOperation
	var content strings.Builder
	var currentFile string
	inBlock := false

	lines := strings.Split(raw, "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if !inBlock && startOfBlockRe.MatchString(line) {
			if name := extractFilename(line); validFilename(name) {
				inBlock = true
				currentFile = name
				content.Reset()
				continue
			}
			if i+1 < len(lines) {
				if name := extractFilename(lines[i+1]); validFilename(name) {
					inBlock = true
					currentFile = name
					content.Reset()
					i++
					continue
				}
			}
			continue
		}
		if inBlock && strings.TrimSpace(line) == "```" {
			inBlock = false
			ops = append(ops, types.PatchOperation{
				Action:  types.ActionCreate,
				File:    currentFile,
				Content: content.String(),
			})
			currentFile = ""
			continue
		}
		if inBlock {
			content.WriteString(line + "\n")
		}
	}
	return ops
}

// extractFilename pulls a filename from a comment marker on the line, e.g.
// "# src/app.ts" or "```go # src/app.ts".
func extractFilename(line string) string {
	parts := strings.Split(line, "#")
	if len(parts) < 2 {
		// Also accept the path directly after the fence: ```src/app.ts
		if m := startOfBlockRe.FindStringSubmatch(line); m != nil && strings.Contains(m[1], ".") {
			return m[1]
		}
		return ""
	}
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if candidate == "" {
		return ""
	}
	return strings.Fields(candidate)[0]
}

func validFilename(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") {
		return false
	}
	segments := strings.Split(strings.Trim(name, "."), ".")
	return len(segments) > 1 && segments[0] != ""
}

var targetedRe = regexp.MustCompile("(?is)`([^`]+\\.[A-Za-z0-9]+)`[^`]*?\\breplace\\b[^`]*`([^`]+)`[^`]*\\bwith\\b[^`]*`([^`]+)`")
var targetedLeadRe = regexp.MustCompile("(?is)\\breplace\\b[^`]*`([^`]+)`[^`]*\\bwith\\b[^`]*`([^`]+)`[^`]*\\bin\\b[^`]*`([^`]+\\.[A-Za-z0-9]+)`")

// targetedReplacements parses imperative instructions of the form
// "Update `path`: replace `X` with `Y`" (and the "replace X with Y in
// `path`" ordering).
func (h *Heuristic) targetedReplacements(raw string) []types.PatchOperation {
	var ops []types.PatchOperation
	for _, m := range targetedRe.FindAllStringSubmatch(raw, -1) {
		ops = append(ops, types.PatchOperation{
			Action:       types.ActionReplace,
			File:         m[1],
			SearchBlock:  m[2],
			ReplaceBlock: m[3],
		})
	}
	if len(ops) == 0 {
		for _, m := range targetedLeadRe.FindAllStringSubmatch(raw, -1) {
			ops = append(ops, types.PatchOperation{
				Action:       types.ActionReplace,
				File:         m[3],
				SearchBlock:  m[1],
				ReplaceBlock: m[2],
			})
		}
	}
	return ops
}
