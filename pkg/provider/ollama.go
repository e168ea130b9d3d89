package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// OllamaProvider runs requests against a local Ollama daemon. Most local
// models have no structured tool-calling support, so tool declarations are
// folded into the system prompt and SupportsTools reports false.
type OllamaProvider struct {
	model string
}

// NewOllamaProvider creates a provider for a locally pulled Ollama model.
// It verifies the daemon is reachable and the model exists.
func NewOllamaProvider(model string) (*OllamaProvider, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listResp, err := client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list local models: %w", err)
	}

	for _, m := range listResp.Models {
		if m.Name == model {
			return &OllamaProvider{model: model}, nil
		}
	}

	available := make([]string, 0, len(listResp.Models))
	for _, m := range listResp.Models {
		available = append(available, m.Name)
	}
	return nil, fmt.Errorf("model %s not found locally, available: %v", model, available)
}

// GetName returns the provider name.
func (p *OllamaProvider) GetName() string { return "ollama" }

// GetModel returns the configured model.
func (p *OllamaProvider) GetModel() string { return p.model }

// SupportsTools reports false; tool declarations are prompt-embedded.
func (p *OllamaProvider) SupportsTools() bool { return false }

// SendChatRequest sends the conversation to the local daemon and collects
// the full response.
func (p *OllamaProvider) SendChatRequest(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}

	messages := make([]ollama.Message, 0, len(req.Messages)+1)
	if len(req.Tools) > 0 {
		messages = append(messages, ollama.Message{
			Role:    "system",
			Content: formatToolsForPrompt(req.Tools),
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, ollama.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	stream := false
	chatReq := &ollama.ChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"temperature": 0.1,
		},
	}
	if req.Temperature != nil {
		chatReq.Options["temperature"] = *req.Temperature
	}

	var content strings.Builder
	err = client.Chat(ctx, chatReq, func(res ollama.ChatResponse) error {
		content.WriteString(res.Message.Content)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat failed: %w", err)
	}

	response := &ChatResponse{
		ID:    fmt.Sprintf("ollama-%d", time.Now().UnixNano()),
		Model: p.model,
	}
	var choice Choice
	choice.Message.Role = "assistant"
	choice.Message.Content = content.String()
	choice.FinishReason = "stop"
	response.Choices = []Choice{choice}
	return response, nil
}

// formatToolsForPrompt renders tool declarations as plain text for models
// without structured tool support.
func formatToolsForPrompt(tools []Tool) string {
	var b strings.Builder
	b.WriteString("You have the following tools available. Respond with a JSON tool invocation to use one.\n\n")
	for _, tool := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Function.Name, tool.Function.Description)
	}
	return b.String()
}
