package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"
)

// TestOpenRouterClientChat tests the OpenRouter client against a mock server
func TestOpenRouterClientChat(t *testing.T) {
	messages := []ChatMessage{
		{Role: "user", Content: "Test question"},
	}

	t.Run("successful query", func(t *testing.T) {
		mockServer := MockChatCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Authorization = %q, want bearer test-key", r.Header.Get("Authorization"))
			}
			var req chatCompletionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("Failed to decode request: %v", err)
			}
			if req.Model != "test/model" {
				t.Errorf("Model = %q, want test/model", req.Model)
			}
			writeChatCompletion(w, "Test response content")
		})
		defer mockServer.Close()

		client := NewOpenRouterClient("test-key", mockServer.URL)
		content, err := client.Chat(context.Background(), "test/model", messages)

		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if content != "Test response content" {
			t.Errorf("Content = %q, want 'Test response content'", content)
		}
	})

	t.Run("API error carries status code", func(t *testing.T) {
		mockServer := MockChatCompletionServer(t, CreateMockChatErrorHandler(429, "rate limit exceeded"))
		defer mockServer.Close()

		client := NewOpenRouterClient("test-key", mockServer.URL)
		_, err := client.Chat(context.Background(), "test/model", messages)

		if err == nil {
			t.Fatal("Expected error for 429 response, got nil")
		}
		for _, want := range []string{"429", "rate limit exceeded"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("Error %q should contain %q", err, want)
			}
		}
	})

	t.Run("context timeout", func(t *testing.T) {
		slowHandler := func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(2 * time.Second)
			w.WriteHeader(http.StatusOK)
		}
		mockServer := MockChatCompletionServer(t, slowHandler)
		defer mockServer.Close()

		client := NewOpenRouterClient("test-key", mockServer.URL)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_, err := client.Chat(ctx, "test/model", messages)
		if err == nil {
			t.Error("Expected timeout error, got nil")
		}
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		invalidHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("{ invalid json }"))
		}
		mockServer := MockChatCompletionServer(t, invalidHandler)
		defer mockServer.Close()

		client := NewOpenRouterClient("test-key", mockServer.URL)
		_, err := client.Chat(context.Background(), "test/model", messages)

		if err == nil {
			t.Error("Expected error for invalid JSON, got nil")
		}
	})

	t.Run("empty choices in response", func(t *testing.T) {
		emptyHandler := func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"choices":[]}`))
		}
		mockServer := MockChatCompletionServer(t, emptyHandler)
		defer mockServer.Close()

		client := NewOpenRouterClient("test-key", mockServer.URL)
		_, err := client.Chat(context.Background(), "test/model", messages)

		if err == nil {
			t.Error("Expected error for empty choices, got nil")
		}
	})
}

// TestOpenAIClientChat tests the OpenAI-compatible client variant
func TestOpenAIClientChat(t *testing.T) {
	messages := []ChatMessage{
		{Role: "user", Content: "Test"},
	}

	t.Run("key is optional for local endpoints", func(t *testing.T) {
		mockServer := MockChatCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "" {
				t.Errorf("Expected no Authorization header, got %q", r.Header.Get("Authorization"))
			}
			writeChatCompletion(w, "local reply")
		})
		defer mockServer.Close()

		client := NewOpenAIClient("", mockServer.URL)
		content, err := client.Chat(context.Background(), "llama3", messages)

		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if content != "local reply" {
			t.Errorf("Content = %q, want 'local reply'", content)
		}
	})

	t.Run("key is sent when configured", func(t *testing.T) {
		mockServer := MockChatCompletionServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer sk-test" {
				t.Errorf("Authorization = %q, want bearer sk-test", r.Header.Get("Authorization"))
			}
			writeChatCompletion(w, "hosted reply")
		})
		defer mockServer.Close()

		client := NewOpenAIClient("sk-test", mockServer.URL)
		if _, err := client.Chat(context.Background(), "gpt-4o", messages); err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
	})
}

// TestNewChatClient tests provider selection
func TestNewChatClient(t *testing.T) {
	t.Run("openrouter", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = ProviderOpenRouter

		client, err := NewChatClient(cfg)
		if err != nil {
			t.Fatalf("NewChatClient failed: %v", err)
		}
		if _, ok := client.(*OpenRouterClient); !ok {
			t.Errorf("Client type = %T, want *OpenRouterClient", client)
		}
	})

	t.Run("openai", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = ProviderOpenAI

		client, err := NewChatClient(cfg)
		if err != nil {
			t.Fatalf("NewChatClient failed: %v", err)
		}
		if _, ok := client.(*OpenAIClient); !ok {
			t.Errorf("Client type = %T, want *OpenAIClient", client)
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.Provider = "mystery"

		if _, err := NewChatClient(cfg); err == nil {
			t.Error("Expected error for unknown provider")
		}
	})
}
