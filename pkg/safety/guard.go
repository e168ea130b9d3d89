// Package safety enforces the write-scope policy gating patch application.
// Every check here is fatal; a patch set that fails policy is never retried
// against the model, since re-asking would only invite the model to restate
// the same unsafe intent.
package safety

import (
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/patchsmith/patchsmith/pkg/types"
	"github.com/patchsmith/patchsmith/pkg/workspace"
)

// Guard validates a structurally valid patch set against the plan, the
// context bundle, and the workspace protected rules.
type Guard struct {
	protected *ignore.GitIgnore
}

// NewGuard builds a guard for the workspace rooted at rootDir, compiling
// its protected-path rules if present.
func NewGuard(rootDir string) *Guard {
	return &Guard{protected: workspace.LoadProtectedRules(rootDir)}
}

var (
	placeholderPathRe = regexp.MustCompile(`(?i)(^|/)path/to(/|$)|<[^>]+>|\byour[_-]?file\b`)
	ellipsisRe        = regexp.MustCompile(`^(?:\.{3}|…)$`)
)

// placeholderBlocks are trivial block values a model echoes from schema
// examples instead of supplying real content.
var placeholderBlocks = []string{
	"...",
	"…",
	"// ...",
	"# ...",
	"...existing code...",
	"// ...existing code...",
	"<code>",
	"<content>",
	"<text>",
	"old code",
	"new code",
}

// Validate applies every policy check to the patch set. The first violation
// is returned as a classified PatchApplyError.
func (g *Guard) Validate(ops []types.PatchOperation, plan *types.Plan, bundle *types.ContextBundle) error {
	if len(ops) == 0 {
		return types.NewPatchApplyError(types.ErrClassEmptyPatch, "nothing to validate")
	}

	allowed := allowedWritePaths(plan, bundle)
	deleteIntent := hasDeleteIntent(plan, bundle)

	for i := range ops {
		op := &ops[i]
		if err := op.Validate(); err != nil {
			return err
		}
		if isPlaceholderPath(op.File) {
			return types.NewPatchApplyError(types.ErrClassPlaceholder,
				"path %q is a template placeholder", op.File)
		}
		if g.isReadOnly(op.File, bundle) {
			return types.NewPatchApplyError(types.ErrClassDisallowed,
				"path %q is read-only", op.File)
		}
		if len(allowed) > 0 && !pathAllowed(op.File, allowed) {
			return types.NewPatchApplyError(types.ErrClassDisallowed,
				"path %q is outside the allowed write scope", op.File)
		}
		if op.Action == types.ActionReplace {
			if isPlaceholderBlock(op.SearchBlock) || isPlaceholderBlock(op.ReplaceBlock) {
				return types.NewPatchApplyError(types.ErrClassPlaceholder,
					"replace blocks for %q echo a schema example", op.File)
			}
		}
		if op.Action == types.ActionDelete && !deleteIntent {
			return types.NewPatchApplyError(types.ErrClassDelete,
				"plan and context give no deletion intent for %q", op.File)
		}
	}
	return nil
}

// allowedWritePaths computes the effective allow-list: the bundle's
// explicit allow paths plus the plan's concrete targets and declared create
// files. An empty result means the architect gave no scoping signal and the
// policy fails open for non-read-only paths.
func allowedWritePaths(plan *types.Plan, bundle *types.ContextBundle) []string {
	var allowed []string
	if bundle != nil {
		allowed = append(allowed, bundle.AllowWritePaths...)
	}
	if plan != nil {
		allowed = append(allowed, plan.ConcreteTargets()...)
		allowed = append(allowed, plan.CreateFiles...)
	}
	return allowed
}

// hasDeleteIntent reports whether the plan or bundle signals that deleting
// files is part of this run's intent.
func hasDeleteIntent(plan *types.Plan, bundle *types.ContextBundle) bool {
	if bundle != nil && bundle.AllowDelete {
		return true
	}
	if plan == nil {
		return false
	}
	for _, step := range plan.Steps {
		if mentionsDeletion(step) {
			return true
		}
	}
	return mentionsDeletion(plan.RiskAssessment)
}

var deletionRe = regexp.MustCompile(`(?i)\b(delete|remove)\b`)

func mentionsDeletion(text string) bool {
	return deletionRe.MatchString(text)
}

func (g *Guard) isReadOnly(path string, bundle *types.ContextBundle) bool {
	if bundle != nil {
		for _, ro := range bundle.ReadOnlyPaths {
			if ro != "" && pathHasPrefix(path, ro) {
				return true
			}
		}
	}
	return g.protected != nil && g.protected.MatchesPath(path)
}

func pathAllowed(path string, allowed []string) bool {
	for _, entry := range allowed {
		if entry != "" && pathHasPrefix(path, entry) {
			return true
		}
	}
	return false
}

// pathHasPrefix matches whole path segments, so "src/gen" covers
// "src/gen/a.go" but not "src/generated.go".
func pathHasPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}

func isPlaceholderPath(path string) bool {
	return placeholderPathRe.MatchString(path)
}

func isPlaceholderBlock(block string) bool {
	trimmed := strings.TrimSpace(block)
	if trimmed == "" {
		return false
	}
	if ellipsisRe.MatchString(trimmed) {
		return true
	}
	lowered := strings.ToLower(trimmed)
	for _, known := range placeholderBlocks {
		if lowered == known {
			return true
		}
	}
	return false
}
