// Package openai provides an OpenAI-compatible llm.Provider implementation.
//
// It speaks the chat-completions SSE protocol over raw HTTP, which keeps it
// compatible with Azure OpenAI, local models, and other services that expose
// the same API surface.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/openai/openai-go"

	"github.com/crxforge/crxforge/pkg/llm"
	"github.com/crxforge/crxforge/pkg/types"
)

// DefaultBaseURL is the default OpenAI API base URL.
const DefaultBaseURL = "https://api.openai.com/v1"

// Provider implements llm.Provider for OpenAI-compatible APIs.
type Provider struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature *float64
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithModel sets the model to use for completions.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL sets a custom base URL for OpenAI-compatible APIs.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithTemperature pins the sampling temperature. Classification calls use a
// low temperature so the same request maps to the same label.
func WithTemperature(t float64) ProviderOption {
	return func(p *Provider) {
		p.temperature = &t
	}
}

// NewProvider creates a provider with the given API key. An empty key falls
// back to the OPENAI_API_KEY environment variable; the base URL falls back to
// OPENAI_BASE_URL when not set via option.
func NewProvider(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via parameter or OPENAI_API_KEY environment variable)")
	}

	p := &Provider{
		model:      "gpt-4o-mini",
		apiKey:     apiKey,
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.baseURL == DefaultBaseURL {
		if envBaseURL := os.Getenv("OPENAI_BASE_URL"); envBaseURL != "" {
			p.baseURL = envBaseURL
		}
	}

	return p, nil
}

// StreamCompletion sends messages to the API and streams back response
// chunks. The channel is closed when streaming completes or an error occurs.
func (p *Provider) StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *llm.StreamChunk, error) {
	resp, err := p.sendStreamRequest(ctx, messages)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go p.processStreamResponse(ctx, resp, chunks)
	return chunks, nil
}

func (p *Provider) sendStreamRequest(ctx context.Context, messages []*types.Message) (*http.Response, error) {
	reqBody := map[string]interface{}{
		"model":    p.model,
		"messages": convertMessages(messages),
		"stream":   true,
	}
	if p.temperature != nil {
		reqBody["temperature"] = *p.temperature
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("API request failed with status %d (failed to read error body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

func (p *Provider) processStreamResponse(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	firstChunk := true

	for scanner.Scan() {
		line := scanner.Text()
		if !isSSEDataLine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			chunks <- &llm.StreamChunk{Finished: true}
			return
		}

		if !p.processSSEChunk(ctx, data, &firstChunk, chunks) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		chunks <- &llm.StreamChunk{Error: fmt.Errorf("stream read error: %w", err)}
	}
}

// isSSEDataLine filters SSE comments and blank keep-alive lines.
func isSSEDataLine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

func (p *Provider) processSSEChunk(ctx context.Context, data string, firstChunk *bool, chunks chan<- *llm.StreamChunk) bool {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
	}

	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return true // skip malformed chunks
	}
	if len(chunk.Choices) == 0 {
		return true
	}

	choice := chunk.Choices[0]
	streamChunk := &llm.StreamChunk{Content: choice.Delta.Content}

	if *firstChunk && choice.Delta.Role != "" {
		streamChunk.Role = choice.Delta.Role
		*firstChunk = false
	}
	if choice.FinishReason != nil && *choice.FinishReason == "stop" {
		streamChunk.Finished = true
	}

	if streamChunk.Content == "" && streamChunk.Role == "" && !streamChunk.Finished {
		return true
	}

	select {
	case chunks <- streamChunk:
		return true
	case <-ctx.Done():
		chunks <- &llm.StreamChunk{Error: ctx.Err()}
		return false
	}
}

// Complete accumulates a full streamed response into a single message.
func (p *Provider) Complete(ctx context.Context, messages []*types.Message) (*types.Message, error) {
	stream, err := p.StreamCompletion(ctx, messages)
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	role := string(types.RoleAssistant)

	for chunk := range stream {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.Role != "" {
			role = chunk.Role
		}
		content.WriteString(chunk.Content)
	}

	return &types.Message{
		Role:    types.MessageRole(role),
		Content: content.String(),
	}, nil
}

// GetModel returns the model name being used.
func (p *Provider) GetModel() string {
	return p.model
}

// GetBaseURL returns the base URL being used.
func (p *Provider) GetBaseURL() string {
	return p.baseURL
}

// convertMessages maps transcript messages to OpenAI's
// ChatCompletionMessageParamUnion format.
func convertMessages(messages []*types.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case types.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
