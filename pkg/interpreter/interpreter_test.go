package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchsmith/patchsmith/pkg/types"
)

func TestInterpretFileBlocks(t *testing.T) {
	raw := "Here is the updated file:\n" +
		"```go\n" +
		"# src/handler.go\n" +
		"package handler\n" +
		"\n" +
		"func Handle() {}\n" +
		"```\n" +
		"That should fix it."

	h := &Heuristic{}
	ops, err := h.Interpret(raw, types.FormatFileWrites)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.ActionCreate, ops[0].Action)
	assert.Equal(t, "src/handler.go", ops[0].File)
	assert.Contains(t, ops[0].Content, "func Handle() {}")
}

func TestInterpretFilenameOnFenceLine(t *testing.T) {
	raw := "```src/util.ts\nexport const x = 1;\n```\n"

	h := &Heuristic{}
	ops, err := h.Interpret(raw, types.FormatFileWrites)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "src/util.ts", ops[0].File)
}

func TestInterpretTargetedReplace(t *testing.T) {
	raw := "Update `src/app.ts`: replace `const x = 1;` with `const x = 2;`"

	h := &Heuristic{}
	ops, err := h.Interpret(raw, types.FormatSearchReplace)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.ActionReplace, ops[0].Action)
	assert.Equal(t, "src/app.ts", ops[0].File)
	assert.Equal(t, "const x = 1;", ops[0].SearchBlock)
	assert.Equal(t, "const x = 2;", ops[0].ReplaceBlock)
}

func TestInterpretReplaceInFileOrdering(t *testing.T) {
	raw := "Please replace `foo()` with `bar()` in `lib/calls.go`."

	h := &Heuristic{}
	ops, err := h.Interpret(raw, types.FormatSearchReplace)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "lib/calls.go", ops[0].File)
	assert.Equal(t, "foo()", ops[0].SearchBlock)
	assert.Equal(t, "bar()", ops[0].ReplaceBlock)
}

func TestInterpretGenericProseFails(t *testing.T) {
	h := &Heuristic{}
	_, err := h.Interpret("I reviewed the files and they look fine.", types.FormatSearchReplace)
	require.Error(t, err)
	assert.True(t, types.IsClass(err, types.ErrClassSchema))
}
