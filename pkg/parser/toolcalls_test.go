package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

func responseWith(content string, calls ...provider.ToolCall) *provider.ChatResponse {
	var choice provider.Choice
	choice.Message.Role = "assistant"
	choice.Message.Content = content
	choice.Message.ToolCalls = calls
	return &provider.ChatResponse{Choices: []provider.Choice{choice}}
}

func TestExtractToolCallsStructured(t *testing.T) {
	var call provider.ToolCall
	call.ID = "call_1"
	call.Function.Name = "read_file"
	call.Function.Arguments = `{"path":"a.go"}`

	calls, content := ExtractToolCalls(responseWith("", call))
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Function.Name)
	assert.Equal(t, "function", calls[0].Type)
	assert.Empty(t, content)
}

func TestExtractToolCallsFromContent(t *testing.T) {
	content := `I'll read the file first.
{"tool_calls":[{"id":"1","function":{"name":"read_file","arguments":"{\"path\":\"a.go\"}"}}]}`

	calls, _ := ExtractToolCalls(responseWith(content))
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Function.Name)
}

func TestExtractToolCallsTerminalMessage(t *testing.T) {
	calls, content := ExtractToolCalls(responseWith("All done, nothing to change."))
	assert.Empty(t, calls)
	assert.Equal(t, "All done, nothing to change.", content)
}

func TestExtractToolCallsDefaultsEmptyArguments(t *testing.T) {
	var call provider.ToolCall
	call.Function.Name = "list_files"

	calls, _ := ExtractToolCalls(responseWith("", call))
	require.Len(t, calls, 1)
	assert.Equal(t, "{}", calls[0].Function.Arguments)
}
