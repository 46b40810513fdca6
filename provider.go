package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ChatClient is the capability the council core consumes: send one chat
// request to a named model, get its text reply back. Transport details stay
// behind this interface; new providers only need to implement Chat.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []ChatMessage) (string, error)
}

// NewChatClient builds the client variant selected by the config's provider tag.
func NewChatClient(cfg *Config) (ChatClient, error) {
	switch cfg.Provider {
	case ProviderOpenRouter:
		return NewOpenRouterClient(cfg.APIKey, cfg.BaseURL), nil
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// OpenRouterClient talks to the OpenRouter chat/completions API.
type OpenRouterClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenRouterClient creates an OpenRouter client. An empty baseURL uses the
// public endpoint.
func NewOpenRouterClient(apiKey, baseURL string) *OpenRouterClient {
	if baseURL == "" {
		baseURL = OpenRouterAPIURL
	}
	return &OpenRouterClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Chat sends one chat request to the named model and returns its text reply.
func (c *OpenRouterClient) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	return doChatCompletion(ctx, c.httpClient, c.baseURL, c.apiKey, model, messages)
}

// OpenAIClient talks to an OpenAI-compatible chat/completions endpoint.
// Pointing baseURL at a local server (Ollama, vLLM) works too; the API key
// is optional in that case.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient creates an OpenAI-compatible client. An empty baseURL uses
// the hosted OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = OpenAIAPIURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// Chat sends one chat request to the named model and returns its text reply.
func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	return doChatCompletion(ctx, c.httpClient, c.baseURL, c.apiKey, model, messages)
}

// doChatCompletion performs one request against a chat/completions endpoint.
// Both provider variants speak the same wire schema; they differ only in
// endpoint and credentials.
func doChatCompletion(ctx context.Context, client *http.Client, url, apiKey, model string, messages []ChatMessage) (string, error) {
	payload := chatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResponse chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &apiResponse); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(apiResponse.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return apiResponse.Choices[0].Message.Content, nil
}
