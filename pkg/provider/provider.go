// Package provider defines the LLM provider contract the builder runs
// against, plus the concrete OpenAI-compatible and Ollama clients.
package provider

import (
	"context"
	"regexp"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a structured tool invocation in an assistant message.
type ToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// Tool declares a callable tool in the provider request.
type Tool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Parameters  interface{} `json:"parameters"`
	} `json:"function"`
}

// Usage reports token accounting for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion alternative.
type Choice struct {
	Index   int `json:"index"`
	Message struct {
		Role      string     `json:"role"`
		Content   string     `json:"content"`
		ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

// ChatResponse is the unified provider response shape.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ChatRequest is the unified provider request shape.
type ChatRequest struct {
	Messages       []Message `json:"messages"`
	Tools          []Tool    `json:"tools,omitempty"`
	ToolChoice     string    `json:"tool_choice,omitempty"`
	ResponseFormat string    `json:"response_format,omitempty"`
	Temperature    *float64  `json:"temperature,omitempty"`
	Stream         bool      `json:"stream,omitempty"`
}

// Provider is the interface every LLM backend implements.
type Provider interface {
	SendChatRequest(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	GetName() string
	GetModel() string
	SupportsTools() bool
}

// FirstMessage returns the assistant message of the first choice, or a zero
// value when the response carries no choices.
func (r *ChatResponse) FirstMessage() (content string, toolCalls []ToolCall) {
	if r == nil || len(r.Choices) == 0 {
		return "", nil
	}
	return r.Choices[0].Message.Content, r.Choices[0].Message.ToolCalls
}

// toolsUnsupportedRe matches the only provider error text the builder acts
// on: the signal that the backing model cannot accept tool declarations.
var toolsUnsupportedRe = regexp.MustCompile(`(?i)tool[ _-]?(calls?|use|choice)?\s*(is|are)?\s*not\s+supported|does\s+not\s+support\s+tools?|no\s+tool\s+support`)

// IsToolsUnsupported reports whether err signals that the provider rejected
// the request because tools are unsupported.
func IsToolsUnsupported(err error) bool {
	return err != nil && toolsUnsupportedRe.MatchString(err.Error())
}
