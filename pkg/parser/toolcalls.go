package parser

import (
	"encoding/json"
	"strings"

	"github.com/patchsmith/patchsmith/pkg/provider"
)

// ExtractToolCalls classifies a provider response as tool invocations or a
// terminal assistant message. Structured tool_calls win; when a model emits
// the invocation as JSON inside its content instead, a single balanced-JSON
// scan recovers it. Argument validation stays with the tool itself.
func ExtractToolCalls(resp *provider.ChatResponse) ([]provider.ToolCall, string) {
	content, calls := resp.FirstMessage()
	if len(calls) > 0 {
		return normalizeCalls(calls), content
	}

	recovered := toolCallsFromContent(content)
	if len(recovered) > 0 {
		return normalizeCalls(recovered), content
	}
	return nil, content
}

type contentToolCallWrapper struct {
	ToolCalls []provider.ToolCall `json:"tool_calls"`
}

// toolCallsFromContent scans content for a balanced JSON segment declaring
// tool_calls. Only segments that parse cleanly are accepted.
func toolCallsFromContent(content string) []provider.ToolCall {
	if !strings.Contains(content, `"tool_calls"`) {
		return nil
	}
	for _, segment := range jsonSegments(content) {
		var wrapper contentToolCallWrapper
		if err := json.Unmarshal([]byte(segment), &wrapper); err != nil {
			continue
		}
		var valid []provider.ToolCall
		for _, call := range wrapper.ToolCalls {
			if call.Function.Name != "" {
				valid = append(valid, call)
			}
		}
		if len(valid) > 0 {
			return valid
		}
	}
	return nil
}

// jsonSegments returns every top-level balanced {...} or [...] span in
// content, honoring string literals and escapes.
func jsonSegments(content string) []string {
	var segments []string
	inString := false
	escape := false
	depth := 0
	segmentStart := -1

	for i := 0; i < len(content); i++ {
		ch := content[i]
		if escape {
			escape = false
			continue
		}
		if ch == '\\' {
			escape = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch ch {
		case '{', '[':
			if depth == 0 {
				segmentStart = i
			}
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
				if depth == 0 && segmentStart >= 0 {
					raw := content[segmentStart : i+1]
					if json.Valid([]byte(raw)) {
						segments = append(segments, raw)
					}
					segmentStart = -1
				}
			}
		}
	}
	return segments
}

func normalizeCalls(calls []provider.ToolCall) []provider.ToolCall {
	for i := range calls {
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
		if strings.TrimSpace(calls[i].Function.Arguments) == "" {
			calls[i].Function.Arguments = "{}"
		}
	}
	return calls
}
