package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchsmith/patchsmith/pkg/types"
)

func replaceOp(file string) types.PatchOperation {
	return types.PatchOperation{
		Action:       types.ActionReplace,
		File:         file,
		SearchBlock:  "const a = 1;",
		ReplaceBlock: "const a = 2;",
	}
}

func TestScopeEnforcement(t *testing.T) {
	guard := NewGuard(t.TempDir())

	plan := &types.Plan{TargetFiles: []string{"src/example.ts"}}
	bundle := &types.ContextBundle{AllowWritePaths: []string{}}

	err := guard.Validate([]types.PatchOperation{replaceOp("src/other.ts")}, plan, bundle)
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassDisallowed))

	err = guard.Validate([]types.PatchOperation{replaceOp("src/example.ts")}, plan, bundle)
	assert.NoError(t, err)
}

func TestUnknownSentinelFailsOpen(t *testing.T) {
	guard := NewGuard(t.TempDir())

	plan := &types.Plan{TargetFiles: []string{types.UnknownTarget}}
	bundle := &types.ContextBundle{}

	err := guard.Validate([]types.PatchOperation{replaceOp("src/other.ts")}, plan, bundle)
	assert.NoError(t, err, "sentinel-only plan gives no scoping signal")
}

func TestAllowWritePathsExtendScope(t *testing.T) {
	guard := NewGuard(t.TempDir())

	plan := &types.Plan{TargetFiles: []string{"src/a.ts"}}
	bundle := &types.ContextBundle{AllowWritePaths: []string{"lib"}}

	assert.NoError(t, guard.Validate([]types.PatchOperation{replaceOp("lib/deep/b.ts")}, plan, bundle))
	err := guard.Validate([]types.PatchOperation{replaceOp("library/b.ts")}, plan, bundle)
	assert.True(t, types.IsClass(err, types.ErrClassDisallowed), "prefix must respect path segments")
}

func TestReadOnlyWinsOverAllowList(t *testing.T) {
	guard := NewGuard(t.TempDir())

	plan := &types.Plan{TargetFiles: []string{"vendor/lib.go"}}
	bundle := &types.ContextBundle{ReadOnlyPaths: []string{"vendor"}}

	err := guard.Validate([]types.PatchOperation{replaceOp("vendor/lib.go")}, plan, bundle)
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassDisallowed))
}

func TestProtectedRulesFileFeedsReadOnlySet(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".patchsmith"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".patchsmith", "protected"), []byte("migrations/\n*.lock\n"), 0644))

	guard := NewGuard(root)
	bundle := &types.ContextBundle{}

	err := guard.Validate([]types.PatchOperation{replaceOp("migrations/001_init.sql")}, nil, bundle)
	assert.True(t, types.IsClass(err, types.ErrClassDisallowed))

	err = guard.Validate([]types.PatchOperation{replaceOp("yarn.lock")}, nil, bundle)
	assert.True(t, types.IsClass(err, types.ErrClassDisallowed))

	assert.NoError(t, guard.Validate([]types.PatchOperation{replaceOp("src/ok.ts")}, nil, bundle))
}

func TestPlaceholderPathRejected(t *testing.T) {
	guard := NewGuard(t.TempDir())

	tests := []string{
		"path/to/file.ts",
		"src/path/to/module.go",
		"<your-file>.go",
		"your_file.py",
	}
	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			err := guard.Validate([]types.PatchOperation{replaceOp(path)}, nil, nil)
			require.Error(t, err)
			assert.True(t, types.IsClass(err, types.ErrClassPlaceholder), "got %v", err)
		})
	}
}

func TestPlaceholderContentRejected(t *testing.T) {
	guard := NewGuard(t.TempDir())

	op := types.PatchOperation{
		Action:       types.ActionReplace,
		File:         "src/a.ts",
		SearchBlock:  "...",
		ReplaceBlock: "real content",
	}
	err := guard.Validate([]types.PatchOperation{op}, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassPlaceholder))

	op.SearchBlock = "// ...existing code..."
	err = guard.Validate([]types.PatchOperation{op}, nil, nil)
	assert.True(t, types.IsClass(err, types.ErrClassPlaceholder))
}

func TestDeleteRequiresIntent(t *testing.T) {
	guard := NewGuard(t.TempDir())
	del := types.PatchOperation{Action: types.ActionDelete, File: "src/old.ts"}

	err := guard.Validate([]types.PatchOperation{del}, &types.Plan{}, &types.ContextBundle{})
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassDelete))

	planWithIntent := &types.Plan{Steps: []string{"Delete the legacy handler in src/old.ts"}}
	assert.NoError(t, guard.Validate([]types.PatchOperation{del}, planWithIntent, &types.ContextBundle{}))

	bundleWithIntent := &types.ContextBundle{AllowDelete: true}
	assert.NoError(t, guard.Validate([]types.PatchOperation{del}, &types.Plan{}, bundleWithIntent))
}

func TestEmptyPatchSetRejected(t *testing.T) {
	guard := NewGuard(t.TempDir())
	err := guard.Validate(nil, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassEmptyPatch))
}
