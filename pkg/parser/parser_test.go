package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchsmith/patchsmith/pkg/types"
)

func TestSearchReplaceParser(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantOps   int
		wantClass string
	}{
		{
			name:    "valid replace payload",
			raw:     `{"patches":[{"action":"replace","file":"src/a.ts","search_block":"x","replace_block":"y"}]}`,
			wantOps: 1,
		},
		{
			name:    "valid mixed actions",
			raw:     `{"patches":[{"action":"create","file":"src/new.ts","content":"n"},{"action":"delete","file":"src/old.ts"}]}`,
			wantOps: 2,
		},
		{
			name:    "payload wrapped in code fence",
			raw:     "```json\n{\"patches\":[{\"action\":\"replace\",\"file\":\"a.go\",\"search_block\":\"x\",\"replace_block\":\"y\"}]}\n```",
			wantOps: 1,
		},
		{
			name:    "payload preceded by prose",
			raw:     "Here is the patch you asked for:\n{\"patches\":[{\"action\":\"replace\",\"file\":\"a.go\",\"search_block\":\"x\",\"replace_block\":\"y\"}]}\nLet me know.",
			wantOps: 1,
		},
		{
			name:      "missing patches key",
			raw:       `{"edits":[]}`,
			wantClass: types.ErrClassSchema,
		},
		{
			name:      "empty patches array",
			raw:       `{"patches":[]}`,
			wantClass: types.ErrClassEmptyPatch,
		},
		{
			name:      "replace missing search_block",
			raw:       `{"patches":[{"action":"replace","file":"a.go","replace_block":"y"}]}`,
			wantClass: types.ErrClassSchema,
		},
		{
			name:      "absolute path rejected",
			raw:       `{"patches":[{"action":"delete","file":"/etc/passwd"}]}`,
			wantClass: types.ErrClassSchema,
		},
		{
			name:      "unknown action",
			raw:       `{"patches":[{"action":"rename","file":"a.go"}]}`,
			wantClass: types.ErrClassSchema,
		},
		{
			name:      "non-JSON prose",
			raw:       "I reviewed the files and everything looks fine.",
			wantClass: types.ErrClassSchema,
		},
		{
			name:      "empty response",
			raw:       "   \n",
			wantClass: types.ErrClassSchema,
		},
	}

	p := &SearchReplaceParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := p.Parse(tt.raw)
			if tt.wantClass != "" {
				require.Error(t, err)
				assert.True(t, types.IsClass(err, tt.wantClass), "want class %q, got %v", tt.wantClass, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ops, tt.wantOps)
		})
	}
}

func TestFileWritesParser(t *testing.T) {
	p := &FileWritesParser{}

	ops, err := p.Parse(`{"files":[{"path":"src/a.ts","content":"export const a = 1;\n"}]}`)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, types.ActionCreate, ops[0].Action)
	assert.Equal(t, "src/a.ts", ops[0].File)
	assert.Equal(t, "export const a = 1;\n", ops[0].Content)

	_, err = p.Parse(`{"files":[]}`)
	assert.True(t, types.IsClass(err, types.ErrClassEmptyPatch))

	_, err = p.Parse(`{"patches":[]}`)
	assert.True(t, types.IsClass(err, types.ErrClassSchema))
}

func TestDetectContextRequest(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{
			name: "clean payload",
			raw:  `{"needs_context":true,"queries":["how is auth wired"],"reason":"missing context"}`,
			want: true,
		},
		{
			name: "fenced payload",
			raw:  "```json\n{\"needs_context\":true}\n```",
			want: true,
		},
		{
			name: "prose-wrapped payload is not honored",
			raw:  `I think I need more context. {"needs_context":true}`,
			want: false,
		},
		{
			name: "needs_context false",
			raw:  `{"needs_context":false}`,
			want: false,
		},
		{
			name: "patch payload is not a context request",
			raw:  `{"patches":[{"action":"delete","file":"a.go"}]}`,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cr, ok := DetectContextRequest(tt.raw)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				require.NotNil(t, cr)
				assert.True(t, cr.NeedsContext)
			}
		})
	}
}

func TestIsTargetedProse(t *testing.T) {
	assert.True(t, IsTargetedProse("Update `src/app.ts`: replace `const x = 1` with `const x = 2`"))
	assert.True(t, IsTargetedProse("In `lib/util.go` replace the line `foo()` with `bar()`."))
	assert.False(t, IsTargetedProse("I reviewed the files and they look good."))
	assert.False(t, IsTargetedProse("Replace the handler with a better one."))
}

func TestForFormat(t *testing.T) {
	_, ok := ForFormat(types.FormatSearchReplace).(*SearchReplaceParser)
	assert.True(t, ok)
	_, ok = ForFormat(types.FormatFileWrites).(*FileWritesParser)
	assert.True(t, ok)
}
