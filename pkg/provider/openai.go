package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible API.
func NewOpenAIProvider(name, endpoint, apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// GetName returns the provider name.
func (p *OpenAIProvider) GetName() string { return p.name }

// GetModel returns the configured model.
func (p *OpenAIProvider) GetModel() string { return p.model }

// SupportsTools reports tool-calling capability. The API may still reject
// tools for a specific model; that surfaces as a provider error the runner
// downgrades on.
func (p *OpenAIProvider) SupportsTools() bool { return true }

type openAIRequest struct {
	Model          string           `json:"model"`
	Messages       []Message        `json:"messages"`
	Tools          []Tool           `json:"tools,omitempty"`
	ToolChoice     string           `json:"tool_choice,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
	Stream         bool             `json:"stream,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// SendChatRequest sends a non-streaming chat completion request.
func (p *OpenAIProvider) SendChatRequest(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := openAIRequest{
		Model:       p.model,
		Messages:    req.Messages,
		Tools:       req.Tools,
		ToolChoice:  req.ToolChoice,
		Temperature: req.Temperature,
	}
	if req.ResponseFormat != "" {
		body.ResponseFormat = &responseFormat{Type: req.ResponseFormat}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, p.name, string(raw))
	}

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &response, nil
}
