// Package patch applies validated patch operations to a workspace using an
// exact-then-normalized text matching strategy that refuses to guess when a
// match is ambiguous.
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/types"
)

// Applier applies patch operations to files under a workspace root.
// Operations within one Apply call run strictly in order; the first failure
// aborts the remainder without rolling back operations already applied.
type Applier struct {
	root string
}

// NewApplier creates an applier rooted at the given workspace directory.
func NewApplier(root string) *Applier {
	return &Applier{root: root}
}

// Root returns the workspace root the applier writes under.
func (a *Applier) Root() string {
	return a.root
}

// Apply executes the operations sequentially. On failure it returns the
// index of the failing operation along with the classified error.
func (a *Applier) Apply(ops []types.PatchOperation) error {
	if len(ops) == 0 {
		return types.NewPatchApplyError(types.ErrClassEmptyPatch, "no operations to apply")
	}
	for i := range ops {
		if err := a.applyOne(&ops[i]); err != nil {
			if pae, ok := err.(*types.PatchApplyError); ok {
				return types.NewPatchApplyError(pae.Class, "operation %d (%s %s): %s", i, ops[i].Action, ops[i].File, pae.Detail)
			}
			return err
		}
	}
	return nil
}

func (a *Applier) applyOne(op *types.PatchOperation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	path, err := a.resolve(op.File)
	if err != nil {
		return err
	}

	switch op.Action {
	case types.ActionCreate:
		return a.create(path, op.Content)
	case types.ActionDelete:
		return a.delete(path)
	case types.ActionReplace:
		return a.replace(path, op.SearchBlock, op.ReplaceBlock)
	default:
		return types.NewPatchApplyError(types.ErrClassSchema, "unknown action %q", op.Action)
	}
}

// resolve joins a workspace-relative path to the root and rejects paths that
// escape it once cleaned.
func (a *Applier) resolve(rel string) (string, error) {
	cleaned := filepath.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", types.NewPatchApplyError(types.ErrClassDisallowed, "path %q escapes the workspace", rel)
	}
	return filepath.Join(a.root, cleaned), nil
}

func (a *Applier) create(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func (a *Applier) delete(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return types.NewPatchApplyError(types.ErrClassMissing, "cannot delete %s: no such file", path)
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func (a *Applier) replace(path, searchBlock, replaceBlock string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return types.NewPatchApplyError(types.ErrClassMissing, "no such file: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	mode := info.Mode().Perm()

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(raw)

	newContent, err := replaceInContent(content, searchBlock, replaceBlock)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(newContent), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// replaceInContent is the core two-tier matching algorithm. Exact byte
// matching wins when it finds a single occurrence; zero exact occurrences
// fall through to whitespace-normalized matching; more than one occurrence
// under either strategy is an ambiguity the caller must resolve, never us.
func replaceInContent(content, searchBlock, replaceBlock string) (string, error) {
	switch count := strings.Count(content, searchBlock); {
	case count == 1:
		return strings.Replace(content, searchBlock, replaceBlock, 1), nil
	case count > 1:
		return "", types.NewPatchApplyError(types.ErrClassAmbiguous,
			"search block matches %d locations; provide more surrounding context", count)
	}

	normalized, mapping := normalizeWithMapping(content)
	normalizedSearch := normalizeWhitespace(searchBlock)
	if normalizedSearch == "" {
		return "", types.NewPatchApplyError(types.ErrClassMissing, "search block is effectively empty")
	}

	offsets := indexAll(normalized, normalizedSearch)
	switch {
	case len(offsets) == 0:
		return "", types.NewPatchApplyError(types.ErrClassMissing,
			"search block not found under exact or whitespace-normalized matching")
	case len(offsets) > 1:
		return "", types.NewPatchApplyError(types.ErrClassAmbiguous,
			"search block matches %d locations after whitespace normalization", len(offsets))
	}

	start, end, ok := originalSpan(mapping, offsets[0], len(normalizedSearch))
	if !ok {
		return "", types.NewPatchApplyError(types.ErrClassMissing,
			"could not map normalized match back to the original content")
	}

	return content[:start] + replaceBlock + content[end:], nil
}
