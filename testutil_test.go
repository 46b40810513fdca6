package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// testConfig returns a config suitable for unit tests.
func testConfig(models ...string) *Config {
	if len(models) == 0 {
		models = []string{"model/a", "model/b"}
	}
	return &Config{
		Provider:           ProviderOpenRouter,
		APIKey:             "test-key",
		CouncilModels:      models,
		ChairmanModel:      "test/chairman",
		TitleModel:         "test/title",
		ModelQueryTimeout:  10 * time.Second,
		TitleGenTimeout:    10 * time.Second,
		FetchTimeout:       10 * time.Second,
		ContentCacheTTL:    5 * time.Minute,
		MaxRequestBodySize: 1 << 20,
	}
}

// fakeCall records one Chat invocation seen by the fake client.
type fakeCall struct {
	model  string
	prompt string
}

// fakeChatClient scripts Chat replies through a function and records every
// call. The reply function may inspect the prompt to tell stages apart.
type fakeChatClient struct {
	mu    sync.Mutex
	calls []fakeCall
	reply func(model, prompt string) (string, error)
}

func (f *fakeChatClient) Chat(ctx context.Context, model string, messages []ChatMessage) (string, error) {
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}

	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: model, prompt: prompt})
	f.mu.Unlock()

	return f.reply(model, prompt)
}

// callsForPrompt returns the models that received a prompt containing substr,
// in call order.
func (f *fakeChatClient) callsForPrompt(substr string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var models []string
	for _, call := range f.calls {
		if strings.Contains(call.prompt, substr) {
			models = append(models, call.model)
		}
	}
	return models
}

// isRankingPrompt reports whether a prompt is the Stage 2 ranking prompt.
func isRankingPrompt(prompt string) bool {
	return strings.Contains(prompt, "provide a final ranking")
}

// isChairmanPrompt reports whether a prompt is the Stage 3 synthesis prompt.
func isChairmanPrompt(prompt string) bool {
	return strings.Contains(prompt, "Chairman of an LLM Council")
}

// newTestCouncil builds a council over the fake client with test config.
func newTestCouncil(client ChatClient, models ...string) *Council {
	return NewCouncil(testConfig(models...), client, nil)
}

// MockChatCompletionServer creates a mock HTTP server for a chat/completions API
func MockChatCompletionServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// CreateMockChatHandler creates a handler that returns the given reply content
func CreateMockChatHandler(t *testing.T, response string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		writeChatCompletion(w, response)
	}
}

// CreateMockChatErrorHandler creates a handler that returns errors
func CreateMockChatErrorHandler(statusCode int, errorMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		w.Write([]byte(errorMsg))
	}
}

// writeChatCompletion writes a minimal chat/completions response body
func writeChatCompletion(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"choices":[{"message":{"content":%s}}]}`, mustJSONString(content))
}

func mustJSONString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// SampleConversation creates a sample conversation for testing
func SampleConversation(id string) *Conversation {
	return &Conversation{
		ID:        id,
		CreatedAt: testTime(),
		Title:     "Test Conversation",
		Messages: []Message{
			{
				Role:    "user",
				Content: "What is Go?",
			},
			{
				Role: "assistant",
				Stage1: []Stage1Response{
					{Model: "test/model1", Response: "Go is a programming language."},
					{Model: "test/model2", Response: "Go is developed by Google."},
				},
				Stage2: &Stage2Result{
					Rankings: []Stage2Ranking{
						{
							Model:         "test/model1",
							Ranking:       "FINAL RANKING:\n1. Response B\n2. Response A",
							ParsedRanking: []string{"Response B", "Response A"},
						},
					},
					LabelToModel: map[string]string{
						"Response A": "test/model1",
						"Response B": "test/model2",
					},
					AggregateRankings: []AggregateRanking{
						{Model: "test/model2", AverageRank: 1.0, RankingsCount: 1},
						{Model: "test/model1", AverageRank: 2.0, RankingsCount: 1},
					},
				},
				Stage3: &Stage3Response{
					Model:    "test/chairman",
					Response: "Go is a programming language developed by Google.",
				},
			},
		},
	}
}

// testTime returns a fixed time for testing
func testTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}
