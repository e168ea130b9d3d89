package changetracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndReadRevisions(t *testing.T) {
	tracker := NewTracker(t.TempDir())

	require.NoError(t, tracker.Record("src/a.ts", "replace", "old\n", "new\n"))
	require.NoError(t, tracker.Record("src/b.ts", "create", "", "content\n"))

	revisions, err := tracker.Revisions()
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, "src/a.ts", revisions[0].File)
	assert.Equal(t, "replace", revisions[0].Action)
	assert.Equal(t, "create", revisions[1].Action)
	assert.False(t, revisions[0].Timestamp.IsZero())
}

func TestRevisionsMissingLogIsEmpty(t *testing.T) {
	tracker := NewTracker(t.TempDir())
	revisions, err := tracker.Revisions()
	require.NoError(t, err)
	assert.Empty(t, revisions)
}

func TestRenderDiff(t *testing.T) {
	diff := RenderDiff("const a = 1;\nconst b = 2;\n", "const a = 3;\nconst b = 2;\n")

	assert.Contains(t, diff, "-const a = 1;")
	assert.Contains(t, diff, "+const a = 3;")
	assert.Contains(t, diff, " const b = 2;")
}
