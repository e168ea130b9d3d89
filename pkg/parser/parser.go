// Package parser validates and converts raw model output into patch
// operations, one parser per output protocol.
package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/types"
)

// Parser converts raw model text into a validated patch set. Every protocol
// arm implements this one interface so the runner can dispatch on
// (mode, format) without protocol branching.
type Parser interface {
	Parse(raw string) ([]types.PatchOperation, error)
}

// ForFormat returns the parser for a patch_json format.
func ForFormat(format types.PatchFormat) Parser {
	switch format {
	case types.FormatFileWrites:
		return &FileWritesParser{}
	default:
		return &SearchReplaceParser{}
	}
}

// SearchReplaceParser parses the search_replace payload schema:
// {"patches": [{"action", "file", "search_block", "replace_block", "content"}]}.
type SearchReplaceParser struct{}

type searchReplacePayload struct {
	Patches *[]types.PatchOperation `json:"patches"`
}

// Parse validates the payload structure and each entry's required fields.
func (p *SearchReplaceParser) Parse(raw string) ([]types.PatchOperation, error) {
	candidate, err := recoverJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload searchReplacePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, types.NewPatchApplyError(types.ErrClassSchema, "not a search_replace payload: %v", err)
	}
	if payload.Patches == nil {
		return nil, types.NewPatchApplyError(types.ErrClassSchema, "payload is missing the patches key")
	}
	if len(*payload.Patches) == 0 {
		return nil, types.NewPatchApplyError(types.ErrClassEmptyPatch, "patches array is empty")
	}

	ops := *payload.Patches
	for i := range ops {
		if err := ops[i].Validate(); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// FileWritesParser parses the file_writes payload schema:
// {"files": [{"path", "content"}]}. Each entry becomes a full-overwrite
// create operation.
type FileWritesParser struct{}

type fileWritesPayload struct {
	Files *[]struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	} `json:"files"`
}

// Parse validates the payload and normalizes entries into create operations.
func (p *FileWritesParser) Parse(raw string) ([]types.PatchOperation, error) {
	candidate, err := recoverJSON(raw)
	if err != nil {
		return nil, err
	}

	var payload fileWritesPayload
	if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
		return nil, types.NewPatchApplyError(types.ErrClassSchema, "not a file_writes payload: %v", err)
	}
	if payload.Files == nil {
		return nil, types.NewPatchApplyError(types.ErrClassSchema, "payload is missing the files key")
	}
	if len(*payload.Files) == 0 {
		return nil, types.NewPatchApplyError(types.ErrClassEmptyPatch, "files array is empty")
	}

	ops := make([]types.PatchOperation, 0, len(*payload.Files))
	for _, f := range *payload.Files {
		op := types.PatchOperation{
			Action:  types.ActionCreate,
			File:    f.Path,
			Content: f.Content,
		}
		if err := op.Validate(); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_+-]*\\s*\n(.*?)\n?```\\s*$")

// stripFence removes a single code fence when it wraps the entire text.
func stripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// recoverJSON returns text that stands a chance of being the intended JSON
// payload. Direct parsing is preferred; on failure the fence is stripped and
// the first-{ to last-} span is sliced out exactly once. Anything still
// invalid is a schema failure.
func recoverJSON(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", types.NewPatchApplyError(types.ErrClassSchema, "empty response")
	}
	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	unfenced := stripFence(trimmed)
	if json.Valid([]byte(unfenced)) {
		return unfenced, nil
	}

	start := strings.Index(unfenced, "{")
	end := strings.LastIndex(unfenced, "}")
	if start >= 0 && end > start {
		sliced := unfenced[start : end+1]
		if json.Valid([]byte(sliced)) {
			return sliced, nil
		}
	}
	return "", types.NewPatchApplyError(types.ErrClassSchema, "response does not contain a parseable JSON payload")
}

// DetectContextRequest recognizes a clean "needs more context" payload. The
// entire response (allowing one wrapping code fence) must be the structured
// payload; a context request embedded in prose is deliberately not honored.
func DetectContextRequest(raw string) (*types.ContextRequest, bool) {
	candidate := stripFence(raw)
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	var cr types.ContextRequest
	if err := json.Unmarshal([]byte(candidate), &cr); err != nil || !cr.NeedsContext {
		return nil, false
	}
	return &cr, true
}

var (
	targetedFileRe    = regexp.MustCompile("`([^`\\s]+\\.[A-Za-z0-9]+)`")
	targetedReplaceRe = regexp.MustCompile(`(?is)\breplace\b.+\bwith\b`)
)

// IsTargetedProse reports whether free-form text names a concrete file and
// an explicit search/replace pair, e.g. "Update `src/a.ts`: replace X with
// Y". Generic commentary fails this test and is treated as a schema failure
// instead of interpreter input.
func IsTargetedProse(raw string) bool {
	return targetedFileRe.MatchString(raw) && targetedReplaceRe.MatchString(raw)
}

// Describe renders a one-line summary of a patch set for logs.
func Describe(ops []types.PatchOperation) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, fmt.Sprintf("%s %s", op.Action, op.File))
	}
	return strings.Join(parts, ", ")
}
