package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

func TestLaneRoundTrip(t *testing.T) {
	lanes := NewFileLanes(t.TempDir())

	require.NoError(t, lanes.Append("main", provider.Message{Role: "user", Content: "add a helper"}))
	require.NoError(t, lanes.Append("main", provider.Message{Role: "assistant", Content: "done"}))

	messages, err := lanes.Prepare("main")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "add a helper", messages[0].Content)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestMissingLaneIsEmpty(t *testing.T) {
	lanes := NewFileLanes(t.TempDir())
	messages, err := lanes.Prepare("nope")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestLanesAreIsolated(t *testing.T) {
	lanes := NewFileLanes(t.TempDir())
	require.NoError(t, lanes.Append("a", provider.Message{Role: "user", Content: "first"}))
	require.NoError(t, lanes.Append("b", provider.Message{Role: "user", Content: "second"}))

	a, err := lanes.Prepare("a")
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, "first", a[0].Content)

	b, err := lanes.Prepare("b")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "second", b[0].Content)
}

func TestInvalidLaneIDRejected(t *testing.T) {
	lanes := NewFileLanes(t.TempDir())
	err := lanes.Append("../escape", provider.Message{Role: "user", Content: "x"})
	require.Error(t, err)
	_, err = lanes.Prepare("a/b")
	require.Error(t, err)
}

func TestFilterSystemRole(t *testing.T) {
	in := []provider.Message{
		{Role: "system", Content: "schema instructions"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "system", Content: "more instructions"},
	}
	out := FilterSystemRole(in)
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
}
