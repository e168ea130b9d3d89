package types

import (
	"fmt"
	"strings"
)

// Plan is the architect-produced plan the builder executes. It is immutable
// for the duration of a run.
type Plan struct {
	Steps          []string `json:"steps"`
	TargetFiles    []string `json:"target_files"`
	CreateFiles    []string `json:"create_files,omitempty"`
	RiskAssessment string   `json:"risk_assessment,omitempty"`
	Verification   []string `json:"verification,omitempty"`
}

// UnknownTarget is the sentinel the architect emits when it could not name
// a concrete target file.
const UnknownTarget = "unknown"

// ConcreteTargets returns the plan's target files minus the "unknown"
// sentinel.
func (p *Plan) ConcreteTargets() []string {
	var targets []string
	for _, f := range p.TargetFiles {
		if f != "" && f != UnknownTarget {
			targets = append(targets, f)
		}
	}
	return targets
}

// ContextBundle carries the request payload assembled upstream plus the two
// path sets the safety guard consumes. Read-only input.
type ContextBundle struct {
	Request         string   `json:"request"`
	Content         string   `json:"content,omitempty"`
	AllowWritePaths []string `json:"allow_write_paths,omitempty"`
	ReadOnlyPaths   []string `json:"read_only_paths,omitempty"`
	AllowDelete     bool     `json:"allow_delete,omitempty"`
}

// PatchAction enumerates the patch operation kinds.
type PatchAction string

const (
	ActionCreate  PatchAction = "create"
	ActionReplace PatchAction = "replace"
	ActionDelete  PatchAction = "delete"
)

// PatchOperation is one atomic file mutation instruction. File is always a
// workspace-relative path, never empty and never absolute.
type PatchOperation struct {
	Action       PatchAction `json:"action"`
	File         string      `json:"file"`
	SearchBlock  string      `json:"search_block,omitempty"`
	ReplaceBlock string      `json:"replace_block,omitempty"`
	Content      string      `json:"content,omitempty"`
}

// RunMode selects the output protocol negotiated with the model.
type RunMode string

const (
	ModeToolCalls RunMode = "tool_calls"
	ModePatchJSON RunMode = "patch_json"
	ModeFreeform  RunMode = "freeform"
)

// PatchFormat selects the JSON payload schema in patch_json mode.
type PatchFormat string

const (
	FormatSearchReplace PatchFormat = "search_replace"
	FormatFileWrites    PatchFormat = "file_writes"
)

// ContextRequest is a builder response declining to edit and asking for
// more retrieval context instead.
type ContextRequest struct {
	NeedsContext bool     `json:"needs_context"`
	Queries      []string `json:"queries,omitempty"`
	Files        []string `json:"files,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// RunResult is the successful outcome of a builder run. A non-nil
// ContextRequest means no patch was applied this run.
type RunResult struct {
	FinalMessage      string          `json:"final_message"`
	ToolCallsExecuted int             `json:"tool_calls_executed"`
	ContextRequest    *ContextRequest `json:"context_request,omitempty"`
}

// Failure classes carried by PatchApplyError. The strings are part of the
// wire contract with callers that pattern-match on them.
const (
	ErrClassAmbiguous   = "ambiguous match"
	ErrClassMissing     = "missing target"
	ErrClassPlaceholder = "placeholder content"
	ErrClassDisallowed  = "disallowed files"
	ErrClassEmptyPatch  = "empty patch set"
	ErrClassSchema      = "schema-invalid payload"
	ErrClassDelete      = "delete action without delete intent"
)

// PatchApplyError is the only channel through which a run fails. Class is a
// machine-matchable string from the ErrClass constants; Detail is
// human-oriented context.
type PatchApplyError struct {
	Class  string
	Detail string
}

func (e *PatchApplyError) Error() string {
	if e.Detail == "" {
		return e.Class
	}
	return fmt.Sprintf("%s: %s", e.Class, e.Detail)
}

// NewPatchApplyError builds a classified error with formatted detail.
func NewPatchApplyError(class, format string, args ...interface{}) *PatchApplyError {
	return &PatchApplyError{Class: class, Detail: fmt.Sprintf(format, args...)}
}

// IsClass reports whether err is a PatchApplyError of the given class.
func IsClass(err error, class string) bool {
	pae, ok := err.(*PatchApplyError)
	return ok && pae.Class == class
}

// Validate checks the structural invariants of a single operation: the file
// path must be present, relative, and the fields required by the action must
// be set.
func (op *PatchOperation) Validate() error {
	if strings.TrimSpace(op.File) == "" {
		return NewPatchApplyError(ErrClassSchema, "operation is missing a file path")
	}
	if strings.HasPrefix(op.File, "/") {
		return NewPatchApplyError(ErrClassSchema, "absolute path %q not allowed", op.File)
	}
	switch op.Action {
	case ActionCreate:
		// Empty content is a legal create (touch semantics).
	case ActionReplace:
		if op.SearchBlock == "" {
			return NewPatchApplyError(ErrClassSchema, "replace for %s is missing search_block", op.File)
		}
	case ActionDelete:
		// No extra fields.
	default:
		return NewPatchApplyError(ErrClassSchema, "unknown action %q for %s", op.Action, op.File)
	}
	return nil
}
